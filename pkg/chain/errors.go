package chain

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ethpandaops/testledger/pkg/jsonrpc"
)

var (
	// ErrWalletUnavailable is returned when no wallet provider can be reached.
	ErrWalletUnavailable = errors.New("wallet unavailable")

	// ErrUserRejected is returned when the user dismisses a wallet prompt.
	ErrUserRejected = errors.New("request rejected by user")

	// ErrWalletBusy is returned when the wallet already has a request pending.
	ErrWalletBusy = errors.New("wallet is busy with a pending request")

	// ErrNetworkSwitchFailed is logged when switching or adding a network fails.
	// It never aborts a connection attempt.
	ErrNetworkSwitchFailed = errors.New("network switch failed")

	// ErrConnectionFailed wraps any other connection failure.
	ErrConnectionFailed = errors.New("wallet connection failed")
)

// IsUserRejected reports whether err represents a user dismissing a prompt.
func IsUserRejected(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, ErrUserRejected) || jsonrpc.HasCode(err, jsonrpc.CodeUserRejected) {
		return true
	}

	msg := strings.ToLower(err.Error())

	return strings.Contains(msg, "user rejected") || strings.Contains(msg, "user denied")
}

// IsWalletBusy reports whether err indicates the wallet has a request pending.
func IsWalletBusy(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, ErrWalletBusy) || jsonrpc.HasCode(err, jsonrpc.CodeResourceUnavailable) {
		return true
	}

	return strings.Contains(strings.ToLower(err.Error()), "already processing")
}

// classify maps a provider error onto the connector error taxonomy.
func classify(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrWalletUnavailable),
		errors.Is(err, ErrUserRejected),
		errors.Is(err, ErrWalletBusy),
		errors.Is(err, ErrConnectionFailed):
		return err
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	case IsUserRejected(err):
		return fmt.Errorf("%w: %w", ErrUserRejected, err)
	case IsWalletBusy(err):
		return fmt.Errorf("%w: %w", ErrWalletBusy, err)
	default:
		return fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}
}

package submit

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ethpandaops/testledger/pkg/chain"
)

var (
	// ErrInvalidMetadata is returned when submission metadata fails validation.
	ErrInvalidMetadata = errors.New("invalid test metadata")

	// ErrNoContract is returned when no contract binding is available.
	ErrNoContract = errors.New("contract not initialized, connect a wallet on a supported network")

	// ErrNoFile is returned when no file is attached to the draft.
	ErrNoFile = errors.New("no file attached")

	// ErrUploadIncomplete is returned when the attached file was not pinned yet.
	ErrUploadIncomplete = errors.New("file has not been uploaded")

	// ErrDraftChanged is returned when the attached file changed during an upload.
	ErrDraftChanged = errors.New("attached file changed during upload")

	// ErrInsufficientFunds is returned when the account cannot pay for gas.
	ErrInsufficientFunds = errors.New("insufficient funds to complete the transaction")

	// ErrConfirmationTimeout is returned when the receipt did not arrive in
	// time. The transaction may still be mined later.
	ErrConfirmationTimeout = errors.New("transaction confirmation timed out")

	// ErrSubmissionFailed wraps any other submission failure.
	ErrSubmissionFailed = errors.New("failed to store test data on chain")
)

// classify maps a write or confirmation failure onto the submission taxonomy.
func classify(err error) error {
	msg := strings.ToLower(err.Error())

	switch {
	case chain.IsUserRejected(err):
		return fmt.Errorf("%w: %w", chain.ErrUserRejected, err)
	case strings.Contains(msg, "insufficient funds"):
		return fmt.Errorf("%w: %w", ErrInsufficientFunds, err)
	case strings.Contains(msg, "timeout"):
		return fmt.Errorf("%w: %w", ErrConfirmationTimeout, err)
	default:
		return fmt.Errorf("%w: %w", ErrSubmissionFailed, err)
	}
}

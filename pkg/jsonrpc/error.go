// Package jsonrpc maps JSON-RPC error objects returned by wallets and
// nodes onto their numeric codes.
package jsonrpc

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/rpc"
)

// Wallet provider error codes (EIP-1193, EIP-1474 and wallet_* extensions).
const (
	CodeUserRejected        = 4001
	CodeUnauthorized        = 4100
	CodeUnsupportedMethod   = 4200
	CodeDisconnected        = 4900
	CodeChainDisconnected   = 4901
	CodeUnrecognizedChain   = 4902
	CodeMethodNotFound      = -32601
	CodeInvalidParams       = -32602
	CodeInternal            = -32603
	CodeResourceUnavailable = -32002
)

// Error represents a JSON-RPC 2.0 error object.
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

var (
	_ rpc.Error     = (*Error)(nil)
	_ rpc.DataError = (*Error)(nil)
)

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("JSON-RPC error %d: %s", e.Code, e.Message)
}

// ErrorCode returns the numeric JSON-RPC error code.
func (e *Error) ErrorCode() int {
	return e.Code
}

// ErrorData returns the optional error data.
func (e *Error) ErrorData() any {
	return e.Data
}

// FromError extracts a JSON-RPC error from err, following wrapped errors.
func FromError(err error) (*Error, bool) {
	if err == nil {
		return nil, false
	}

	var rpcErr *Error
	if errors.As(err, &rpcErr) {
		return rpcErr, true
	}

	var c rpc.Error
	if errors.As(err, &c) {
		out := &Error{Code: c.ErrorCode(), Message: c.Error()}

		if dc, ok := c.(rpc.DataError); ok {
			out.Data = dc.ErrorData()
		}

		return out, true
	}

	return nil, false
}

// HasCode reports whether err carries the given JSON-RPC error code.
func HasCode(err error, code int) bool {
	rpcErr, ok := FromError(err)

	return ok && rpcErr.Code == code
}

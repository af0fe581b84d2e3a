package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/ethpandaops/testledger/pkg/chain"
	"github.com/ethpandaops/testledger/pkg/contract"
	"github.com/ethpandaops/testledger/pkg/dashboard"
	"github.com/ethpandaops/testledger/pkg/ipfs"
	"github.com/ethpandaops/testledger/pkg/numeric"
	"github.com/ethpandaops/testledger/pkg/records"
	"github.com/ethpandaops/testledger/pkg/submit"
)

// errorResponse is a standard error payload.
type errorResponse struct {
	Error string `json:"error"`
}

// httpError maps an error to a status code and a message that is safe to
// show to users. Full detail only goes to the log.
func httpError(err error) (int, string) {
	switch {
	case errors.Is(err, submit.ErrInvalidMetadata):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, submit.ErrNoFile), errors.Is(err, submit.ErrUploadIncomplete):
		return http.StatusBadRequest, submit.UserMessage(err)
	case errors.Is(err, errUploadNotFound):
		return http.StatusNotFound, errUploadNotFound.Error()
	case errors.Is(err, records.ErrNotFound):
		return http.StatusNotFound, "record not found"
	case errors.Is(err, chain.ErrUserRejected):
		return http.StatusConflict, submit.UserMessage(err)
	case errors.Is(err, chain.ErrWalletBusy):
		return http.StatusConflict, "wallet is busy with another request"
	case errors.Is(err, dashboard.ErrNotConnected), errors.Is(err, chain.ErrWalletUnavailable):
		return http.StatusServiceUnavailable, "wallet not connected"
	case chain.IsConnectionError(err):
		return http.StatusServiceUnavailable, "failed to connect wallet"
	case errors.Is(err, contract.ErrUnsupportedNetwork):
		return http.StatusConflict, "contract not deployed on this network"
	case errors.Is(err, submit.ErrNoContract):
		return http.StatusServiceUnavailable, submit.UserMessage(err)
	case errors.Is(err, submit.ErrInsufficientFunds):
		return http.StatusPaymentRequired, submit.UserMessage(err)
	case errors.Is(err, submit.ErrConfirmationTimeout):
		return http.StatusGatewayTimeout, submit.UserMessage(err)
	case errors.Is(err, submit.ErrSubmissionFailed):
		return http.StatusBadGateway, submit.UserMessage(err)
	case numeric.IsFormatError(err):
		return http.StatusBadGateway, "contract returned an unexpected value"
	case errors.Is(err, records.ErrFetchFailed):
		return http.StatusBadGateway, "failed to fetch test data from the blockchain"
	case errors.Is(err, ipfs.ErrTooLarge):
		return http.StatusRequestEntityTooLarge, ipfs.ErrTooLarge.Error()
	case errors.Is(err, ipfs.ErrUploadFailed), errors.Is(err, submit.ErrDraftChanged):
		return http.StatusBadGateway, "failed to upload file to IPFS"
	case errors.Is(err, ipfs.ErrGatewayFailed):
		return http.StatusBadGateway, "gateway request failed"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "request cancelled"
	default:
		return http.StatusInternalServerError, "internal error"
	}
}

// writeError logs err and writes its user-safe form.
func (s *server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, msg := httpError(err)

	entry := s.log.WithError(err).
		WithField("method", r.Method).
		WithField("path", r.URL.Path).
		WithField("status", status)

	if status >= http.StatusInternalServerError {
		entry.Error("Request failed")
	} else {
		entry.Warn("Request rejected")
	}

	writeJSON(w, status, errorResponse{msg})
}

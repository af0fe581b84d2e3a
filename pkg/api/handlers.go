package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/ethpandaops/testledger/pkg/ipfs"
	"github.com/ethpandaops/testledger/pkg/logbuf"
	"github.com/ethpandaops/testledger/pkg/records"
	"github.com/ethpandaops/testledger/pkg/submit"
	"github.com/go-chi/chi/v5"
)

// writeJSON encodes v as JSON and writes it to w.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, "encoding response", http.StatusInternalServerError)
	}
}

// attemptParam parses the optional ?attempt= gateway index.
func attemptParam(r *http.Request) (int, error) {
	raw := r.URL.Query().Get("attempt")
	if raw == "" {
		return 0, nil
	}

	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid attempt %q", raw)
	}

	return n, nil
}

// --- Read handlers ---

func (s *server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *server) handleNetwork(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.svc.Status())
}

type recordsResponse struct {
	Records []records.Record `json:"records"`
	Total   int              `json:"total"`
}

func (s *server) handleListRecords(w http.ResponseWriter, r *http.Request) {
	list, err := s.svc.Records(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		s.writeError(w, r, err)

		return
	}

	if list == nil {
		list = []records.Record{}
	}

	writeJSON(w, http.StatusOK, recordsResponse{Records: list, Total: len(list)})
}

func (s *server) handleGetRecord(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id < 0 {
		writeJSON(w, http.StatusBadRequest, errorResponse{"invalid record id"})

		return
	}

	attempt, err := attemptParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{err.Error()})

		return
	}

	detail, err := s.svc.Record(r.Context(), id, attempt)
	if err != nil {
		s.writeError(w, r, err)

		return
	}

	writeJSON(w, http.StatusOK, detail)
}

type auditResponse struct {
	Events []records.AuditEvent `json:"events"`
}

func (s *server) handleAudit(w http.ResponseWriter, r *http.Request) {
	events, err := s.svc.Audit(r.Context())
	if err != nil {
		s.writeError(w, r, err)

		return
	}

	if events == nil {
		events = []records.AuditEvent{}
	}

	writeJSON(w, http.StatusOK, auditResponse{Events: events})
}

type gatewayResponse struct {
	CID         string `json:"cid"`
	Attempt     int    `json:"attempt"`
	URL         string `json:"url"`
	NextAttempt int    `json:"next_attempt"`
	Gateways    int    `json:"gateways"`
}

func (s *server) handleGateway(w http.ResponseWriter, r *http.Request) {
	attempt, err := attemptParam(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{err.Error()})

		return
	}

	cid := chi.URLParam(r, "cid")
	gateways := s.svc.Gateways()

	writeJSON(w, http.StatusOK, gatewayResponse{
		CID:         cid,
		Attempt:     attempt,
		URL:         gateways.URLFor(cid, attempt),
		NextAttempt: attempt + 1,
		Gateways:    gateways.Len(),
	})
}

type logsResponse struct {
	Entries        []logbuf.Entry `json:"entries"`
	StorageEnabled bool           `json:"storage_enabled"`
}

func (s *server) handleLogs(w http.ResponseWriter, r *http.Request) {
	resp := logsResponse{Entries: []logbuf.Entry{}}

	if s.logs != nil {
		if entries := s.logs.Entries(r.URL.Query().Get("level")); entries != nil {
			resp.Entries = entries
		}

		resp.StorageEnabled = s.logs.StorageEnabled()
	}

	writeJSON(w, http.StatusOK, resp)
}

func (s *server) handleDownloadLogs(w http.ResponseWriter, r *http.Request) {
	if s.logs == nil {
		writeJSON(w, http.StatusNotFound, errorResponse{"log buffer disabled"})

		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition",
		fmt.Sprintf("attachment; filename=%q", logbuf.ExportFilename(time.Now())))

	if err := s.logs.Export(w); err != nil {
		s.log.WithError(err).WithField("path", r.URL.Path).Warn("Failed to export logs")
	}
}

// --- Write handlers ---

func (s *server) handleConnect(w http.ResponseWriter, r *http.Request) {
	status, err := s.svc.Connect(r.Context())
	if err != nil {
		s.writeError(w, r, err)

		return
	}

	writeJSON(w, http.StatusOK, status)
}

type uploadResponse struct {
	UploadID  string              `json:"upload_id"`
	File      ipfs.FileDescriptor `json:"file"`
	ExpiresAt time.Time           `json:"expires_at"`
}

func (s *server) handleUpload(w http.ResponseWriter, r *http.Request) {
	if s.maxUpload > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, s.maxUpload+multipartOverheadBytes)
	}

	if err := r.ParseMultipartForm(multipartMemoryLimit); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) || strings.Contains(err.Error(), "request body too large") {
			s.writeError(w, r, fmt.Errorf("%w: %w", ipfs.ErrTooLarge, err))

			return
		}

		writeJSON(w, http.StatusBadRequest, errorResponse{"invalid multipart form"})

		return
	}

	defer func() { _ = r.MultipartForm.RemoveAll() }()

	file, header, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{"file field is required"})

		return
	}
	defer file.Close()

	draft := submit.NewDraft()
	draft.Attach(ipfs.File{Name: header.Filename, Size: header.Size, Body: file})

	desc, err := s.svc.Upload(r.Context(), draft)
	if err != nil {
		s.metrics.uploads.WithLabelValues("failed").Inc()
		s.writeError(w, r, err)

		return
	}

	s.metrics.uploads.WithLabelValues("pinned").Inc()

	id := s.uploads.put(draft)

	writeJSON(w, http.StatusCreated, uploadResponse{
		UploadID:  id,
		File:      desc,
		ExpiresAt: time.Now().Add(s.cfg.Uploads.TTL).UTC(),
	})
}

func (s *server) handleDeleteUpload(w http.ResponseWriter, r *http.Request) {
	if !s.uploads.remove(chi.URLParam(r, "id")) {
		s.writeError(w, r, errUploadNotFound)

		return
	}

	w.WriteHeader(http.StatusNoContent)
}

type submitRequest struct {
	UploadID string `json:"upload_id"`
	submit.Metadata
}

type submitResponse struct {
	Status string `json:"status"`
	*submit.Result
	Message string `json:"message,omitempty"`
}

func (s *server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{"invalid request body"})

		return
	}

	draft := submit.NewDraft()

	if req.UploadID != "" {
		d, err := s.uploads.get(req.UploadID)
		if err != nil {
			s.writeError(w, r, err)

			return
		}

		draft = d
	}

	res, err := s.svc.Submit(r.Context(), req.Metadata, draft)

	switch {
	case err == nil:
		s.metrics.submissions.WithLabelValues("confirmed").Inc()
		s.uploads.remove(req.UploadID)

		writeJSON(w, http.StatusCreated, submitResponse{Status: "confirmed", Result: res})
	case errors.Is(err, submit.ErrConfirmationTimeout) && res != nil:
		s.metrics.submissions.WithLabelValues("timeout").Inc()
		s.log.WithError(err).WithField("tx", res.TxHash.Hex()).Warn("Submission still pending")

		// A broadcast transaction consumes the upload.
		s.uploads.remove(req.UploadID)

		writeJSON(w, http.StatusAccepted, submitResponse{
			Status:  "pending",
			Result:  res,
			Message: submit.UserMessage(err),
		})
	default:
		s.metrics.submissions.WithLabelValues("failed").Inc()
		s.writeError(w, r, err)
	}
}

func (s *server) handleClearLogs(w http.ResponseWriter, r *http.Request) {
	if s.logs != nil {
		if err := s.logs.Clear(r.Context()); err != nil {
			s.writeError(w, r, err)

			return
		}
	}

	w.WriteHeader(http.StatusNoContent)
}

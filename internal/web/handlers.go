package web

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/bulkrow/bulkrow/internal/importer"
	"github.com/bulkrow/bulkrow/internal/logging"
	"github.com/bulkrow/bulkrow/internal/pgsink"
)

// importRequest is the JSON spec accompanying an uploaded file in the
// "spec" form field.
type importRequest struct {
	// Table is the destination table. Required unless DryRun is set.
	Table string `json:"table"`

	// Columns maps source attributes to destination columns.
	Columns []pgsink.Column `json:"columns"`

	// Rules maps column references to pipe-separated rule expressions.
	Rules map[string]string `json:"rules"`

	Options importOptions `json:"options"`
}

type importOptions struct {
	ChunkSize        int               `json:"chunkSize"`
	SkipOnFailure    bool              `json:"skipOnFailure"`
	SkipOnError      bool              `json:"skipOnError"`
	UseHeadingRow    bool              `json:"useHeadingRow"`
	FailFast         bool              `json:"failFast"`
	DryRun           bool              `json:"dryRun"`
	CustomMessages   map[string]string `json:"customMessages"`
	CustomAttributes map[string]string `json:"customAttributes"`
}

// importResponse wraps the engine result. SkippedFailures carries the
// per-chunk failures reported while persisting around them, which the
// result itself omits in that mode.
type importResponse struct {
	*importer.Result
	SkippedFailures []importer.Failure `json:"skippedFailures,omitempty"`
	SkippedErrors   []string           `json:"skippedErrors,omitempty"`
}

// handleImport runs one import from a multipart upload: a "file" part with
// the CSV data and a "spec" part with the JSON import request. The file is
// streamed, so memory stays bounded by the chunk size.
func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context())

	maxSize := s.cfg.Import.MaxFileSize
	r.Body = http.MaxBytesReader(w, r.Body, maxSize)

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		writeError(w, r, http.StatusBadRequest, "file too large or invalid form")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "no file provided")
		return
	}
	defer file.Close()

	specJSON := r.FormValue("spec")
	if specJSON == "" {
		writeError(w, r, http.StatusBadRequest, "missing spec field")
		return
	}
	var req importRequest
	if err := json.Unmarshal([]byte(specJSON), &req); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid spec JSON")
		return
	}

	if err := s.limiter.Acquire(r.Context()); err != nil {
		if errors.Is(err, ErrTooManyImports) {
			w.Header().Set("Retry-After", "30")
			writeError(w, r, http.StatusTooManyRequests, err.Error())
			return
		}
		writeError(w, r, http.StatusServiceUnavailable, "import slot unavailable")
		return
	}
	defer s.limiter.Release()

	var sink importer.Sink
	if !req.Options.DryRun {
		if s.pool == nil {
			writeError(w, r, http.StatusServiceUnavailable, "no database configured, only dry runs accepted")
			return
		}
		pg, err := pgsink.New(s.pool, req.Table, req.Columns)
		if err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
		sink = pg
	}

	resp := importResponse{}

	chunkSize := req.Options.ChunkSize
	if chunkSize <= 0 {
		chunkSize = s.cfg.Import.ChunkSize
	}

	imp, err := importer.New(sink, importer.Options{
		ChunkSize:        chunkSize,
		SkipOnFailure:    req.Options.SkipOnFailure,
		SkipOnError:      req.Options.SkipOnError,
		UseHeadingRow:    req.Options.UseHeadingRow,
		FailFast:         req.Options.FailFast,
		DryRun:           req.Options.DryRun,
		Rules:            req.Rules,
		CustomMessages:   req.Options.CustomMessages,
		CustomAttributes: req.Options.CustomAttributes,
		OnFailure: func(chunk int, failures []importer.Failure) {
			resp.SkippedFailures = append(resp.SkippedFailures, failures...)
		},
		OnError: func(err error) {
			resp.SkippedErrors = append(resp.SkippedErrors, err.Error())
		},
		Logger: log,
	})
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.cfg.Import.Timeout)
	defer cancel()

	result, runErr := imp.Run(ctx, importer.NewCSVSource(file, header.Size))
	resp.Result = result
	if len(resp.SkippedFailures) > 0 {
		resp.SkippedFailures = importer.NormalizeFailures(resp.SkippedFailures)
	}

	if runErr == nil {
		writeJSON(w, http.StatusOK, resp)
		return
	}

	var valErr *importer.ValidationError
	var cfgErr *importer.ConfigurationError
	var srcErr *importer.SourceReadError
	switch {
	case errors.As(runErr, &valErr):
		// Validation failures are part of the result payload
		writeJSON(w, http.StatusUnprocessableEntity, resp)
	case errors.As(runErr, &cfgErr):
		writeError(w, r, http.StatusBadRequest, runErr.Error())
	case errors.As(runErr, &srcErr):
		writeError(w, r, http.StatusBadRequest, runErr.Error())
	case errors.Is(runErr, context.DeadlineExceeded):
		writeError(w, r, http.StatusGatewayTimeout, "import timed out")
	default:
		writeError(w, r, http.StatusInternalServerError, "import failed")
	}
}

package handlers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/thevalentinedev/altreach/internal/assist"
	"github.com/thevalentinedev/altreach/internal/config"
	"github.com/thevalentinedev/altreach/internal/extract"
	"github.com/thevalentinedev/altreach/internal/metrics"
	"github.com/thevalentinedev/altreach/internal/security"
	"github.com/thevalentinedev/altreach/internal/stats"
	"github.com/thevalentinedev/altreach/internal/types"
	"github.com/thevalentinedev/altreach/pkg/version"
)

// PostExtractor runs an extraction session. Satisfied by extract.Extractor.
type PostExtractor interface {
	Extract(ctx context.Context, req extract.Request) (*types.Post, error)
}

// Handler handles all altreach API requests.
type Handler struct {
	extractor PostExtractor
	advisor   assist.Advisor
	config    *config.Config
	stats     *stats.Tracker
}

// New creates a new Handler.
func New(extractor PostExtractor, advisor assist.Advisor, cfg *config.Config) *Handler {
	return &Handler{
		extractor: extractor,
		advisor:   advisor,
		config:    cfg,
		stats:     stats.NewTracker(),
	}
}

// HandleStats serves per-domain extraction statistics.
func (h *Handler) HandleStats(w http.ResponseWriter, r *http.Request) {
	h.writeJSONResponse(w, http.StatusOK, map[string]interface{}{
		"domains": h.stats.Snapshot(),
	})
}

// HandleHealth handles the /health endpoint.
func (h *Handler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	startTime := time.Now()
	resp := types.Response{
		Status:    types.StatusOK,
		Message:   "altreach is ready",
		StartTime: startTime.UnixMilli(),
		EndTime:   time.Now().UnixMilli(),
		Version:   version.Full(),
	}
	h.writeJSONResponse(w, http.StatusOK, resp)
}

// HandleAPI handles the main API endpoint.
func (h *Handler) HandleAPI(w http.ResponseWriter, r *http.Request) {
	startTime := time.Now()

	// Limit request body size to prevent memory exhaustion
	const maxBodySize = 1 << 20 // 1MB
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
	defer r.Body.Close()

	// Parse request using pooled buffer to reduce GC pressure
	buf := getBuffer()
	defer putBuffer(buf)

	if _, err := io.Copy(buf, r.Body); err != nil {
		log.Warn().Err(err).Msg("Failed to read request body")
		h.writeError(w, "", "Failed to read request", startTime)
		return
	}

	var req types.Request
	if err := json.Unmarshal(buf.Bytes(), &req); err != nil {
		log.Warn().Err(err).Msg("Failed to decode request")
		h.writeError(w, "", "Invalid JSON request", startTime)
		return
	}

	if err := req.Validate(); err != nil {
		log.Warn().Err(err).Msg("Request validation failed")
		h.writeError(w, req.Cmd, err.Error(), startTime)
		return
	}

	log.Info().
		Str("cmd", req.Cmd).
		Str("url", security.RedactURL(req.URL)).
		Msg("Request received")

	switch req.Cmd {
	case types.CmdContentExtract:
		h.handleExtract(w, r.Context(), &req, startTime)
	case types.CmdContentAssist:
		h.handleAssist(w, r.Context(), &req, startTime)
	default:
		// Unreachable, Validate rejects unknown commands
		h.writeError(w, req.Cmd, "Unknown command", startTime)
	}
}

// HandleMethodNotAllowed handles requests with unsupported HTTP methods.
func (h *Handler) HandleMethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	h.writeErrorWithStatus(w, http.StatusMethodNotAllowed, "", "Method not allowed", time.Now())
}

// HandleNotFound handles requests to unknown paths.
func (h *Handler) HandleNotFound(w http.ResponseWriter, r *http.Request) {
	h.writeErrorWithStatus(w, http.StatusNotFound, "", "Not found", time.Now())
}

// handleExtract runs an extraction session and returns the post.
func (h *Handler) handleExtract(w http.ResponseWriter, ctx context.Context, req *types.Request, startTime time.Time) {
	if req.URL == "" {
		h.writeCommandError(w, req.Cmd, types.ErrURLRequired, "url is required", startTime)
		return
	}

	post, err := h.extractor.Extract(ctx, extract.Request{
		URL:       req.URL,
		AuthToken: req.AuthToken,
		CSRFToken: req.CSRFToken,
		Selector:  req.Selector,
		Timeout:   time.Duration(req.MaxTimeout) * time.Millisecond,
	})
	if err != nil {
		kind := types.Classify(err)
		log.Error().
			Err(err).
			Str("kind", kind).
			Str("url", security.RedactURL(req.URL)).
			Msg("Extraction failed")
		metrics.RecordRequest(req.Cmd, kind, time.Since(startTime))
		metrics.RecordExtraction(kind)
		h.stats.RecordFailure(req.URL, kind, time.Since(startTime))

		resp := types.Response{
			Status:    types.StatusError,
			Message:   err.Error(),
			StartTime: startTime.UnixMilli(),
			EndTime:   time.Now().UnixMilli(),
			Version:   version.Full(),
			Error:     kind,
		}
		h.writeJSONResponse(w, http.StatusOK, resp)
		return
	}

	metrics.RecordRequest(req.Cmd, "ok", time.Since(startTime))
	metrics.RecordExtraction("ok")
	h.stats.RecordSuccess(req.URL, time.Since(startTime))

	resp := types.Response{
		Status:    types.StatusOK,
		Message:   "Content extracted successfully",
		StartTime: startTime.UnixMilli(),
		EndTime:   time.Now().UnixMilli(),
		Version:   version.Full(),
		Post:      post,
	}
	h.writeJSONResponse(w, http.StatusOK, resp)
}

// handleAssist generates reply suggestions. Callers either paste post
// text directly or give a URL, in which case the post is extracted
// first and its text fed to the advisor.
func (h *Handler) handleAssist(w http.ResponseWriter, ctx context.Context, req *types.Request, startTime time.Time) {
	if !h.advisor.Enabled() {
		h.writeCommandError(w, req.Cmd, types.ErrAssistDisabled, "Assist is not configured on this server", startTime)
		return
	}

	text := req.Text
	var post *types.Post
	if text == "" {
		if req.URL == "" {
			h.writeCommandError(w, req.Cmd, types.ErrInvalidRequest, "text or url is required", startTime)
			return
		}

		var err error
		post, err = h.extractor.Extract(ctx, extract.Request{
			URL:       req.URL,
			AuthToken: req.AuthToken,
			CSRFToken: req.CSRFToken,
			Selector:  req.Selector,
			Timeout:   time.Duration(req.MaxTimeout) * time.Millisecond,
		})
		if err != nil {
			h.writeCommandError(w, req.Cmd, err, err.Error(), startTime)
			return
		}
		text = post.Text
	}

	result, err := h.advisor.Suggest(ctx, assist.SuggestRequest{
		PostText:   text,
		Tone:       req.Tone,
		MaxReplies: req.MaxReplies,
	})
	if err != nil {
		log.Error().Err(err).Msg("Suggestion generation failed")
		h.writeCommandError(w, req.Cmd, err, err.Error(), startTime)
		return
	}

	metrics.RecordRequest(req.Cmd, "ok", time.Since(startTime))

	resp := types.Response{
		Status:    types.StatusOK,
		Message:   "Suggestions generated successfully",
		StartTime: startTime.UnixMilli(),
		EndTime:   time.Now().UnixMilli(),
		Version:   version.Full(),
		Post:      post,
		Assist:    result,
	}
	h.writeJSONResponse(w, http.StatusOK, resp)
}

// writeCommandError records metrics and writes an error envelope whose
// Error field carries the machine-readable kind for err.
func (h *Handler) writeCommandError(w http.ResponseWriter, cmd string, err error, message string, startTime time.Time) {
	kind := types.Classify(err)
	metrics.RecordRequest(cmd, kind, time.Since(startTime))

	resp := types.Response{
		Status:    types.StatusError,
		Message:   message,
		StartTime: startTime.UnixMilli(),
		EndTime:   time.Now().UnixMilli(),
		Version:   version.Full(),
		Error:     kind,
	}
	h.writeJSONResponse(w, http.StatusOK, resp)
}

// writeError writes an error response. Command errors keep HTTP 200
// with the failure in the JSON body so clients only branch on one
// error surface.
func (h *Handler) writeError(w http.ResponseWriter, cmd string, message string, startTime time.Time) {
	if cmd != "" {
		metrics.RecordRequest(cmd, types.KindInternal, time.Since(startTime))
	}
	h.writeErrorWithStatus(w, http.StatusOK, cmd, message, startTime)
}

// writeErrorWithStatus writes an error response with a specific HTTP status code.
func (h *Handler) writeErrorWithStatus(w http.ResponseWriter, statusCode int, cmd string, message string, startTime time.Time) {
	resp := types.Response{
		Status:    types.StatusError,
		Message:   message,
		StartTime: startTime.UnixMilli(),
		EndTime:   time.Now().UnixMilli(),
		Version:   version.Full(),
	}
	h.writeJSONResponse(w, statusCode, resp)
}

// writeJSONResponse buffers JSON before writing so encoding errors are
// caught before headers are sent.
func (h *Handler) writeJSONResponse(w http.ResponseWriter, statusCode int, resp interface{}) {
	buf := getResponseBuffer()
	defer putResponseBuffer(buf)

	if err := json.NewEncoder(buf).Encode(resp); err != nil {
		log.Error().Err(err).Msg("Failed to encode JSON response")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"status":"error","message":"internal encoding error"}`))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if statusCode != http.StatusOK {
		w.WriteHeader(statusCode)
	}
	_, _ = w.Write(buf.Bytes())
}

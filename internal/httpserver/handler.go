package httpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/davidbz/ember/internal/domain"
	"github.com/davidbz/ember/internal/httpserver/middleware"
	"github.com/davidbz/ember/internal/observability"
	"github.com/davidbz/ember/internal/provider/registry"
)

const (
	// ServiceName is reported by the health and readiness probes.
	ServiceName = "ember"

	headerUserID    = "X-User-ID"
	headerSessionID = "X-Session-ID"

	objectChunk = "chat.completion.chunk"
	objectList  = "list"
)

// Handler handles HTTP requests.
type Handler struct {
	gateway *domain.GatewayService
}

// NewHandler creates a new HTTP handler (DI constructor).
func NewHandler(gateway *domain.GatewayService) *Handler {
	return &Handler{
		gateway: gateway,
	}
}

// HandleChatCompletion forwards an OpenAI-compatible chat completion.
func (h *Handler) HandleChatCompletion(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	// Parse request.
	var req domain.CompletionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeDetail(ctx, w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return
	}

	if req.Model == "" {
		writeDetail(ctx, w, http.StatusBadRequest, "model is required")
		return
	}

	userID := r.Header.Get(headerUserID)
	if userID == "" {
		userID = req.User
	}

	rc := &domain.RequestContext{
		TraceID:   observability.GetTraceID(ctx),
		UserID:    userID,
		SessionID: r.Header.Get(headerSessionID),
		Endpoint:  r.URL.Path,
	}

	result, err := h.gateway.Complete(ctx, &req, rc)

	w.Header().Set(middleware.HeaderTraceID, rc.TraceID)
	w.Header().Set(middleware.HeaderDurationMs, strconv.FormatInt(rc.Duration.Milliseconds(), 10))

	// The gateway already logged the failure with its error kind.
	if err != nil {
		writeDetail(ctx, w, http.StatusInternalServerError, err.Error())
		return
	}

	if req.Stream {
		h.writeStream(ctx, w, result)
		return
	}

	writeJSON(ctx, w, http.StatusOK, result)
}

// streamChunk is one server-sent event of an emulated stream.
type streamChunk struct {
	ID      string         `json:"id"`
	Object  string         `json:"object"`
	Created int64          `json:"created"`
	Model   string         `json:"model"`
	Choices []streamChoice `json:"choices"`
	Usage   *domain.Usage  `json:"usage,omitempty"`
}

type streamChoice struct {
	Index        int         `json:"index"`
	Delta        streamDelta `json:"delta"`
	FinishReason *string     `json:"finish_reason"`
}

type streamDelta struct {
	Role    string `json:"role,omitempty"`
	Content string `json:"content,omitempty"`
}

// writeStream delivers a completed result as OpenAI-style SSE: one content
// chunk per choice, one closing chunk with finish reasons, then [DONE].
func (h *Handler) writeStream(ctx context.Context, w http.ResponseWriter, result *domain.CompletionResult) {
	logger := observability.FromContext(ctx)

	// Set headers for SSE.
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	flusher, _ := w.(http.Flusher)

	send := func(payload string) bool {
		if _, err := fmt.Fprintf(w, "data: %s\n\n", payload); err != nil {
			logger.Info("stream client went away", observability.Error(err))
			return false
		}
		if flusher != nil {
			flusher.Flush()
		}
		return true
	}

	chunk := func(choices []streamChoice, usage *domain.Usage) string {
		data, _ := json.Marshal(streamChunk{
			ID:      result.ID,
			Object:  objectChunk,
			Created: result.Created,
			Model:   result.Model,
			Choices: choices,
			Usage:   usage,
		})
		return string(data)
	}

	for _, choice := range result.Choices {
		delta := []streamChoice{{
			Index: choice.Index,
			Delta: streamDelta{Role: choice.Message.Role, Content: choice.Message.Content},
		}}
		if !send(chunk(delta, nil)) {
			return
		}
	}

	final := make([]streamChoice, 0, len(result.Choices))
	for _, choice := range result.Choices {
		reason := choice.FinishReason
		if reason == "" {
			reason = "stop"
		}
		final = append(final, streamChoice{Index: choice.Index, FinishReason: &reason})
	}
	if !send(chunk(final, result.Usage)) {
		return
	}

	send("[DONE]")
}

// HandleModels lists the static model catalog.
func (h *Handler) HandleModels(w http.ResponseWriter, r *http.Request) {
	writeJSON(r.Context(), w, http.StatusOK, map[string]any{
		"object": objectList,
		"data":   registry.Catalog(),
	})
}

// HandleHealth handles liveness probes.
func (h *Handler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(r.Context(), w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"service": ServiceName,
	})
}

// HandleReady handles readiness probes.
func (h *Handler) HandleReady(w http.ResponseWriter, r *http.Request) {
	writeJSON(r.Context(), w, http.StatusOK, map[string]string{
		"status":  "ready",
		"service": ServiceName,
	})
}

type scoreRequest struct {
	Name    string   `json:"name"`
	Value   *float64 `json:"value"`
	Comment string   `json:"comment,omitempty"`
}

// HandleScore attaches an evaluation score to a trace.
func (h *Handler) HandleScore(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	traceID := chi.URLParam(r, "traceID")

	var body scoreRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeDetail(ctx, w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return
	}

	if body.Name == "" || body.Value == nil {
		writeDetail(ctx, w, http.StatusBadRequest, "name and value are required")
		return
	}

	recorded := h.gateway.Score(ctx, traceID, domain.ScoreParams{
		Name:    body.Name,
		Value:   *body.Value,
		Comment: body.Comment,
	})

	writeJSON(ctx, w, http.StatusAccepted, map[string]bool{"recorded": recorded})
}

func writeDetail(ctx context.Context, w http.ResponseWriter, status int, detail string) {
	writeJSON(ctx, w, status, map[string]string{"detail": detail})
}

func writeJSON(ctx context.Context, w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		// Already written status, can't change it, just log.
		observability.FromContext(ctx).Error("failed to encode response", observability.Error(err))
	}
}

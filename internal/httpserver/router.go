package httpserver

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/davidbz/ember/internal/httpserver/middleware"
)

// NewRouter registers every route of the proxy behind the middleware chain.
func NewRouter(handler *Handler, middlewares middleware.Middleware) http.Handler {
	r := chi.NewRouter()
	r.Use(middlewares)

	r.Post("/v1/chat/completions", handler.HandleChatCompletion)
	r.Post("/chat/completions", handler.HandleChatCompletion)

	r.Get("/v1/models", handler.HandleModels)
	r.Get("/models", handler.HandleModels)

	r.Post("/v1/traces/{traceID}/scores", handler.HandleScore)

	r.Get("/health", handler.HandleHealth)
	r.Get("/ready", handler.HandleReady)

	return r
}

package api

import (
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
)

// NewRouter mounts every endpoint. stream may be nil to disable /api/stream.
func NewRouter(h *Handler, stream *Stream, allowedOrigins []string) http.Handler {
	r := chi.NewRouter()
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	}))

	r.Get("/health", h.Health)

	r.Get("/api/board", h.GetBoard)
	r.Get("/api/indicators/{index}", h.GetIndicator)
	r.Get("/api/lines", h.GetLines)
	r.Get("/api/lines/{lineID}", h.GetLine)
	r.Get("/api/cycles", h.GetCycles)
	if stream != nil {
		r.Get("/api/stream", stream.ServeHTTP)
	}

	return r
}

// LogRoutes prints the mounted endpoints.
func LogRoutes(port string) {
	log.Printf("API server starting on :%s", port)
	log.Println("Board endpoints:")
	log.Println("  GET /api/board")
	log.Println("  GET /api/indicators/{index}")
	log.Println("  GET /api/lines")
	log.Println("  GET /api/lines/{lineID}")
	log.Println("  GET /api/cycles?limit=N")
	log.Println("  GET /api/stream (server-sent events)")
	log.Println("Health:")
	log.Println("  GET /health (with database check)")
}

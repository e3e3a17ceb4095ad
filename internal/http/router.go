package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"policy-manual-ai/internal/handlers"
	"policy-manual-ai/internal/service"
	"policy-manual-ai/internal/session"
	"policy-manual-ai/internal/vectorstore"
)

// Deps holds dependencies for the HTTP router.
type Deps struct {
	ChatService    service.ChatService
	Sessions       *session.Store
	VectorStore    vectorstore.VectorStore
	ModelChecker   handlers.ModelChecker
	ModelName      string
	CollectionName string
	Runs           handlers.RunLookup // optional; enables the health index check
	Importer       handlers.LogImporter // optional; enables POST /api/import
	DataDir        string
	IndexHTML      string // Embedded HTML content
}

// NewRouter creates a new HTTP router with the provided dependencies.
func NewRouter(deps *Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(LoggerMiddleware)
	r.Use(RequestLogger)
	r.Use(CORS)

	chatHandler := handlers.NewChatHandler(deps.ChatService)

	r.Route("/api", func(r chi.Router) {
		r.Route("/chat", func(r chi.Router) {
			r.Use(SessionMiddleware(deps.Sessions))
			r.Post("/ask", chatHandler.Ask)
			r.Get("/history", chatHandler.History)
			r.Post("/clear/history", chatHandler.Clear)
			r.Post("/clear", chatHandler.Clear)
		})

		if deps.VectorStore != nil {
			health := handlers.NewHealthHandler(deps.VectorStore, deps.ModelChecker, deps.ModelName, deps.CollectionName)
			if deps.Runs != nil {
				health.WithRuns(deps.Runs)
			}
			r.Method(http.MethodGet, "/health", health)
		}
		if deps.Importer != nil {
			r.Method(http.MethodPost, "/import", handlers.NewImportHandler(deps.Importer, deps.DataDir))
		}
	})

	// Serve HTML page at root
	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(deps.IndexHTML))
	})

	return r
}

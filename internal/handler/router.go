package handler

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/rs/cors"
)

// NewRouter creates a new HTTP router with all routes configured
func NewRouter(
	documentHandler *DocumentHandler,
	highlightHandler *HighlightHandler,
	positionHandler *PositionHandler,
	sessionHandler *SessionHandler,
	allowedOrigins []string,
	middleware ...func(http.Handler) http.Handler,
) http.Handler {
	router := mux.NewRouter()
	for _, mw := range middleware {
		router.Use(mw)
	}

	// Health check endpoint
	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok","service":"epub-reader"}`))
	}).Methods("GET")

	// API prefix
	api := router.PathPrefix("/api/v1").Subrouter()

	// Document routes
	api.HandleFunc("/documents", documentHandler.GetLibrary).Methods("GET")
	api.HandleFunc("/documents", documentHandler.CreateDocument).Methods("POST")
	api.HandleFunc("/documents/{id}", documentHandler.GetDocument).Methods("GET")
	api.HandleFunc("/documents/{id}", documentHandler.DeleteDocument).Methods("DELETE")

	// Highlight routes
	api.HandleFunc("/documents/{documentId}/highlights", highlightHandler.ListDocumentHighlights).Methods("GET")
	api.HandleFunc("/documents/{documentId}/highlights", highlightHandler.CreateHighlight).Methods("POST")
	api.HandleFunc("/highlights", highlightHandler.ListHighlights).Methods("GET")
	api.HandleFunc("/highlights/{id}", highlightHandler.UpdateHighlight).Methods("PUT")
	api.HandleFunc("/highlights/{id}", highlightHandler.DeleteHighlight).Methods("DELETE")

	// Reading position routes
	api.HandleFunc("/documents/{documentId}/position", positionHandler.GetReadingPosition).Methods("GET")
	api.HandleFunc("/documents/{documentId}/position", positionHandler.UpdateReadingPosition).Methods("PUT")
	api.HandleFunc("/positions", positionHandler.ListReadingPositions).Methods("GET")

	// Reader session (websocket)
	api.HandleFunc("/documents/{documentId}/session", sessionHandler.OpenSession).Methods("GET")

	// Configure CORS
	c := cors.New(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{
			http.MethodGet,
			http.MethodPost,
			http.MethodPut,
			http.MethodDelete,
			http.MethodOptions,
		},
		AllowedHeaders: []string{
			"Accept",
			"Content-Type",
			"X-CSRF-Token",
		},
		ExposedHeaders: []string{
			"Link",
		},
		AllowCredentials: true,
		MaxAge:           300, // Maximum value not ignored by any of major browsers
	})

	return c.Handler(router)
}

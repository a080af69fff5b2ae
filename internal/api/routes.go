package api

import (
	"net/http"

	"github.com/gorilla/mux"
)

// SetupRoutes configures all API routes. uploadsDir is served under
// /uploads/ so journaled image URLs resolve.
func SetupRoutes(handler *Handler, uploadsDir string) *mux.Router {
	r := mux.NewRouter()

	// Health check
	r.HandleFunc("/health", handler.HealthCheck).Methods("GET")

	// API routes
	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/auth/login", handler.Login).Methods("POST")
	api.HandleFunc("/settings", handler.UpdateSettings).Methods("POST")
	api.HandleFunc("/settings/{userId}", handler.GetSettings).Methods("GET")
	api.HandleFunc("/history/{userId}", handler.GetHistory).Methods("GET")
	api.HandleFunc("/analyze", handler.Analyze).Methods("POST")

	// Stored chart images
	r.PathPrefix("/uploads/").Handler(
		http.StripPrefix("/uploads/", http.FileServer(http.Dir(uploadsDir))))

	return r
}

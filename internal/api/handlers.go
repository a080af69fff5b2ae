package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/tradesight/tradesight/internal/analysis"
	"github.com/tradesight/tradesight/internal/extract"
	"github.com/tradesight/tradesight/internal/inference"
	"github.com/tradesight/tradesight/internal/ingest"
	"github.com/tradesight/tradesight/internal/models"
	"github.com/tradesight/tradesight/internal/store"
)

// maxUploadBytes caps chart image uploads at 10MB
const maxUploadBytes = 10 << 20

// Handler holds dependencies for HTTP handlers
type Handler struct {
	users          store.UserStore
	journal        store.Journal
	orchestrator   *analysis.Orchestrator
	analyzeTimeout time.Duration
	log            *zap.Logger
}

// NewHandler creates a new Handler
func NewHandler(users store.UserStore, journal store.Journal, orchestrator *analysis.Orchestrator, analyzeTimeout time.Duration, log *zap.Logger) *Handler {
	return &Handler{
		users:          users,
		journal:        journal,
		orchestrator:   orchestrator,
		analyzeTimeout: analyzeTimeout,
		log:            log,
	}
}

// Login handles POST /api/auth/login. There is no real authentication:
// logging in upserts the user by email and returns the record.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email   string `json:"email"`
		Name    string `json:"name"`
		Picture string `json:"picture"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Email == "" {
		respondError(w, http.StatusBadRequest, "email is required")
		return
	}

	user, err := h.users.UpsertByEmail(r.Context(), req.Email, req.Name, req.Picture)
	if err != nil {
		h.log.Error("login upsert failed", zap.String("email", req.Email), zap.Error(err))
		respondError(w, http.StatusInternalServerError, "failed to log in")
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{"success": true, "user": user})
}

// UpdateSettings handles POST /api/settings
func (h *Handler) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID       string               `json:"userId"`
		GeminiKey    *string              `json:"geminiKey"`
		RiskSettings *models.RiskSettings `json:"riskSettings"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.UserID == "" {
		respondError(w, http.StatusBadRequest, "userId is required")
		return
	}

	err := h.users.UpdateSettings(r.Context(), req.UserID, req.GeminiKey, req.RiskSettings)
	if errors.Is(err, store.ErrNotFound) {
		respondError(w, http.StatusNotFound, "User not found")
		return
	}
	if err != nil {
		h.log.Error("settings update failed", zap.String("user_id", req.UserID), zap.Error(err))
		respondError(w, http.StatusInternalServerError, "failed to save settings")
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{"success": true, "message": "Settings saved"})
}

// GetSettings handles GET /api/settings/{userId}
func (h *Handler) GetSettings(w http.ResponseWriter, r *http.Request) {
	userID := mux.Vars(r)["userId"]

	settings, err := h.users.GetSettings(r.Context(), userID)
	if errors.Is(err, store.ErrNotFound) {
		respondError(w, http.StatusNotFound, "User not found")
		return
	}
	if err != nil {
		h.log.Error("settings lookup failed", zap.String("user_id", userID), zap.Error(err))
		respondError(w, http.StatusInternalServerError, "failed to load settings")
		return
	}

	respondJSON(w, http.StatusOK, settings)
}

// GetHistory handles GET /api/history/{userId}
func (h *Handler) GetHistory(w http.ResponseWriter, r *http.Request) {
	userID := mux.Vars(r)["userId"]

	records, err := h.journal.List(r.Context(), userID)
	if err != nil {
		h.log.Error("history lookup failed", zap.String("user_id", userID), zap.Error(err))
		respondError(w, http.StatusInternalServerError, "failed to load history")
		return
	}

	respondJSON(w, http.StatusOK, records)
}

// Analyze handles POST /api/analyze (multipart: userId, mode, image)
func (h *Handler) Analyze(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		respondError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}

	userID := r.FormValue("userId")
	mode := r.FormValue("mode")
	if userID == "" {
		respondError(w, http.StatusBadRequest, "userId is required")
		return
	}
	if !models.ValidMode(mode) {
		respondError(w, http.StatusBadRequest, "mode must be scalp or swing")
		return
	}

	file, header, err := r.FormFile("image")
	if err != nil {
		respondError(w, http.StatusBadRequest, "No image uploaded")
		return
	}
	defer file.Close()

	image, err := io.ReadAll(file)
	if err != nil {
		respondError(w, http.StatusBadRequest, "failed to read image")
		return
	}

	// The external call can take seconds; bound the whole pipeline.
	ctx, cancel := context.WithTimeout(r.Context(), h.analyzeTimeout)
	defer cancel()

	result, err := h.orchestrator.Analyze(ctx, userID, mode, image, header.Header.Get("Content-Type"), header.Filename)
	if err != nil {
		h.respondAnalyzeError(w, userID, err)
		return
	}

	respondJSON(w, http.StatusOK, result)
}

// respondAnalyzeError maps pipeline failures onto status codes and
// messages that distinguish the failing stage.
func (h *Handler) respondAnalyzeError(w http.ResponseWriter, userID string, err error) {
	var schemaErr *extract.SchemaError

	switch {
	case errors.Is(err, analysis.ErrMissingCredential):
		respondError(w, http.StatusUnauthorized, "Gemini API Key missing. Please Update Settings.")
	case errors.Is(err, ingest.ErrInvalidUpload):
		respondError(w, http.StatusBadRequest, "Invalid image upload. Please provide a non-empty image file.")
	case errors.Is(err, inference.ErrAuth):
		respondError(w, http.StatusInternalServerError, "Analysis failed: the provider rejected your API key. Check your settings.")
	case errors.Is(err, inference.ErrProvider):
		respondError(w, http.StatusInternalServerError, "Analysis failed: the provider is unavailable. Try again later.")
	case errors.Is(err, extract.ErrNoStructuredData), errors.Is(err, extract.ErrMalformedData), errors.As(err, &schemaErr):
		respondError(w, http.StatusInternalServerError, "Analysis failed: unexpected model response. Please retry.")
	case errors.Is(err, analysis.ErrPersistence):
		respondError(w, http.StatusInternalServerError, "Analysis could not be saved. Try again later.")
	default:
		respondError(w, http.StatusInternalServerError, "Analysis failed.")
	}

	h.log.Error("analysis failed", zap.String("user_id", userID), zap.Error(err))
}

// HealthCheck handles GET /health
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

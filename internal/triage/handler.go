package triage

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/wolfman30/medislot/pkg/logging"
)

// Handler exposes the classifier over HTTP.
type Handler struct {
	classifier *Classifier
	logger     *logging.Logger
}

// NewHandler creates a triage handler. A nil classifier uses DefaultRules.
func NewHandler(classifier *Classifier, logger *logging.Logger) *Handler {
	if classifier == nil {
		classifier = defaultClassifier
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{classifier: classifier, logger: logger}
}

// ClassifyRequest is the body of POST /triage/classify.
type ClassifyRequest struct {
	Symptoms string `json:"symptoms"`
}

// Classify handles POST /triage/classify
func (h *Handler) Classify(w http.ResponseWriter, r *http.Request) {
	var req ClassifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if strings.TrimSpace(req.Symptoms) == "" {
		writeError(w, http.StatusBadRequest, "symptoms is required")
		return
	}

	result := h.classifier.Classify(req.Symptoms)
	h.logger.Debug("symptoms classified", "triage_level", result.Level, "keyword", result.MatchedKeyword)

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(result); err != nil {
		h.logger.Error("failed to encode triage result", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

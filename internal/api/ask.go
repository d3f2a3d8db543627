package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/tradescholar/supportkb/internal/answer"
)

const (
	maxQuestionRunes = 2000
	askTimeout       = 60 * time.Second
)

// Answerer resolves a question to a routed answer.
type Answerer interface {
	Answer(ctx context.Context, question string) answer.Answer
}

type askHandler struct {
	answerer Answerer
	logger   *slog.Logger
}

type askRequest struct {
	Question string `json:"question"`
}

func (h *askHandler) ask(w http.ResponseWriter, r *http.Request) {
	var req askRequest

	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 64<<10)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "request body must be JSON with a question field")

		return
	}

	question := strings.TrimSpace(req.Question)
	if question == "" {
		writeError(w, http.StatusBadRequest, "empty_question", "question must not be empty")

		return
	}

	if runes := []rune(question); len(runes) > maxQuestionRunes {
		question = string(runes[:maxQuestionRunes])
	}

	ctx, cancel := context.WithTimeout(r.Context(), askTimeout)
	defer cancel()

	writeJSON(w, http.StatusOK, h.answerer.Answer(ctx, question))
}

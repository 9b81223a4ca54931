package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/whisperbox/apiserver/internal/suggest"
)

// SuggestHandler serves AI-generated message prompts.
type SuggestHandler struct {
	suggester suggest.Suggester
	logger    zerolog.Logger
}

// NewSuggestHandler constructs a handler with the provided suggester.
func NewSuggestHandler(suggester suggest.Suggester, logger zerolog.Logger) *SuggestHandler {
	return &SuggestHandler{suggester: suggester, logger: logger}
}

// SuggestRouter registers the suggestion route on the given router.
func SuggestRouter(r chi.Router, suggester suggest.Suggester, logger zerolog.Logger) {
	handler := NewSuggestHandler(suggester, logger)
	r.Get("/suggest-messages", handler.SuggestMessages)
}

// SuggestMessages returns a '||'-delimited string of suggested questions.
func (h *SuggestHandler) SuggestMessages(w http.ResponseWriter, r *http.Request) {
	text, err := h.suggester.Suggest(r.Context())
	if err != nil {
		h.logger.Error().Err(err).Msg("suggestion provider failed")
		writeError(w, http.StatusInternalServerError, "Failed to generate suggestions")
		return
	}

	writeJSON(w, http.StatusOK, SuggestResponse{
		Envelope: Envelope{Success: true, Message: "Suggestions generated"},
		Text:     text,
	})
}

type SuggestResponse struct {
	Envelope
	Text string `json:"text"`
}

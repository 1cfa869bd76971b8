package api

import (
	"chat-room/domain"
	"chat-room/errors"
	"chat-room/services"
	"net/http"
	"strconv"

	"github.com/samber/lo"
)

type messageResponse struct {
	ID   string `json:"id"`
	From string `json:"from"`
	To   string `json:"to"`
	Text string `json:"text"`
	Type string `json:"type"`
	Time string `json:"time"`
}

func toMessageResponse(m domain.Message, _ int) messageResponse {
	return messageResponse{
		ID:   m.ID.String(),
		From: m.From,
		To:   m.To,
		Text: m.Text,
		Type: string(m.Type),
		Time: m.Time,
	}
}

func (h *Handler) listMessages(w http.ResponseWriter, r *http.Request) {
	limit, err := parseLimit(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	messages, err := h.messages.ListVisible(r.Context(), r.Header.Get(UserHeader), limit)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, lo.Map(messages, toMessageResponse))
}

func (h *Handler) sendMessage(w http.ResponseWriter, r *http.Request) {
	var request services.SendRequest
	if err := decodeBody(r, &request); err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := h.messages.Send(r.Context(), r.Header.Get(UserHeader), request); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusCreated)
}

// parseLimit returns nil when no limit was asked for. Range checks belong to the service.
func parseLimit(r *http.Request) (*int, error) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return nil, nil
	}
	limit, err := strconv.Atoi(raw)
	if err != nil {
		return nil, errors.NewValidationError("limit", `"limit" must be a number`)
	}
	return &limit, nil
}

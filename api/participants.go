package api

import (
	"chat-room/domain"
	"chat-room/services"
	"net/http"

	"github.com/samber/lo"
)

type participantResponse struct {
	Name       string `json:"name"`
	LastStatus int64  `json:"lastStatus"`
}

func toParticipantResponse(p domain.Participant, _ int) participantResponse {
	return participantResponse{Name: p.Name, LastStatus: p.LastSeen.UnixMilli()}
}

func (h *Handler) listParticipants(w http.ResponseWriter, r *http.Request) {
	participants, err := h.presence.List(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, lo.Map(participants, toParticipantResponse))
}

func (h *Handler) registerParticipant(w http.ResponseWriter, r *http.Request) {
	var request services.RegisterRequest
	if err := decodeBody(r, &request); err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := h.presence.Register(r.Context(), request.Name); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusCreated)
}

func (h *Handler) heartbeat(w http.ResponseWriter, r *http.Request) {
	if err := h.presence.Heartbeat(r.Context(), r.Header.Get(UserHeader)); err != nil {
		h.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

package api

import (
	"chat-room/errors"
	"encoding/json"
	"net/http"
)

type errorResponse struct {
	Error   string   `json:"error"`
	Fields  []string `json:"fields,omitempty"`
	Details []string `json:"details,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// writeError maps service errors to HTTP statuses. Anything unexpected is
// logged and hidden behind a generic 500.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var verr *errors.ValidationError
	switch {
	case errors.As(err, &verr):
		writeJSON(w, http.StatusUnprocessableEntity, errorResponse{
			Error:   errors.ErrValidation.Error(),
			Fields:  verr.Fields,
			Details: verr.Messages,
		})
	case errors.Is(err, errors.ErrAlreadyExists):
		writeJSON(w, http.StatusConflict, errorResponse{Error: errors.ErrAlreadyExists.Error()})
	case errors.Is(err, errors.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorResponse{Error: errors.ErrNotFound.Error()})
	case errors.Is(err, errors.ErrSenderNotRegistered):
		writeJSON(w, http.StatusUnprocessableEntity, errorResponse{Error: errors.ErrSenderNotRegistered.Error()})
	default:
		h.log.ErrorContext(r.Context(), "Request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal error"})
	}
}

// decodeBody reads a JSON payload. Malformed bodies and unknown fields are
// reported as validation errors.
func decodeBody(r *http.Request, dst any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		return errors.NewValidationError("body", "body must be a JSON object: "+err.Error())
	}
	return nil
}

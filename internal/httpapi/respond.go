package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"massagebook/internal/apperr"
	"massagebook/internal/booking"
	"massagebook/internal/errlog"
)

type envelope struct {
	Success bool         `json:"success"`
	Data    any          `json:"data,omitempty"`
	Error   *errorDetail `json:"error,omitempty"`
}

type errorDetail struct {
	Kind    string         `json:"kind"`
	Field   string         `json:"field,omitempty"`
	Code    string         `json:"code,omitempty"`
	Message string         `json:"message"`
	Notice  *errlog.Notice `json:"notice,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeData(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, envelope{Success: true, Data: data})
}

func writeFailure(w http.ResponseWriter, status int, kind, message string) {
	writeJSON(w, status, envelope{Error: &errorDetail{Kind: kind, Message: message}})
}

// writeError renders err in the error envelope. When wz is set the wizard's
// current view rides along as data. Unexpected errors discard the draft.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, wz *booking.Wizard, err error) {
	ctx := r.Context()

	switch {
	case errors.Is(err, booking.ErrSessionNotFound):
		writeFailure(w, http.StatusNotFound, "not_found", "This booking session has expired. Please start again.")
		return
	case errors.Is(err, booking.ErrSubmitInProgress):
		var data any
		if wz != nil {
			data = wz.View()
		}
		writeJSON(w, http.StatusConflict, envelope{
			Data:  data,
			Error: &errorDetail{Kind: "conflict", Message: "Your booking is being submitted. Please wait."},
		})
		return
	}

	status := http.StatusInternalServerError
	switch apperr.KindOf(err) {
	case apperr.KindValidation:
		status = http.StatusUnprocessableEntity
	case apperr.KindNetwork:
		status = http.StatusBadGateway
	case apperr.KindPayment:
		status = http.StatusPaymentRequired
	}
	notice := s.errors.Report(ctx, err)

	var data any
	if wz != nil {
		if status == http.StatusInternalServerError {
			data = wz.Fail(err)
		} else {
			data = wz.View()
		}
	}

	ev := booking.NewErrorView(err)
	writeJSON(w, status, envelope{
		Data: data,
		Error: &errorDetail{
			Kind:    string(ev.Kind),
			Field:   ev.Field,
			Code:    ev.Code,
			Message: ev.Message,
			Notice:  &notice,
		},
	})
}

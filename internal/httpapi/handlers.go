package httpapi

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"massagebook/internal/apperr"
	"massagebook/internal/booking"
	"massagebook/internal/calendar"
)

const maxBodyBytes = 64 << 10

type serviceRequest struct {
	Service string `json:"service"`
}

type dateRequest struct {
	Date string `json:"date"`
}

type timeRequest struct {
	Time string `json:"time"`
}

type contactRequest struct {
	Name            string  `json:"name"`
	Email           string  `json:"email"`
	Phone           string  `json:"phone"`
	SpecialRequests *string `json:"special_requests"`
}

type paymentMethodRequest struct {
	Method string `json:"method"`
}

type calendarResponse struct {
	Month   calendar.YearMonth `json:"month"`
	Prev    calendar.YearMonth `json:"prev"`
	Next    calendar.YearMonth `json:"next"`
	Headers []string           `json:"headers"`
	Weeks   [][]calendar.Cell  `json:"weeks"`
}

func decode(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		return apperr.Validation("body", "The request body is not valid JSON.")
	}
	return nil
}

type wizardHandler func(w http.ResponseWriter, r *http.Request, wz *booking.Wizard)

// withWizard resolves the {id} session and runs fn against it.
func (s *Server) withWizard(fn wizardHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		wz, err := s.sessions.Get(id)
		if err != nil {
			s.writeError(w, r, nil, err)
			return
		}
		l := zerolog.Ctx(r.Context()).With().Str("session_id", id).Logger()
		fn(w, r.WithContext(l.WithContext(r.Context())), wz)
	}
}

// respondView writes v on success, or the error with v attached.
func (s *Server) respondView(w http.ResponseWriter, r *http.Request, wz *booking.Wizard, v booking.View, err error) {
	if err != nil {
		s.writeError(w, r, wz, err)
		return
	}
	writeData(w, http.StatusOK, v)
}

func (s *Server) handleServices(w http.ResponseWriter, _ *http.Request) {
	services := s.catalog.All(false)
	out := make([]booking.ServiceView, 0, len(services))
	for _, svc := range services {
		out = append(out, booking.NewServiceView(svc))
	}
	writeData(w, http.StatusOK, out)
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	wz := s.sessions.Create()
	zerolog.Ctx(r.Context()).Info().Str("session_id", wz.ID()).Msg("booking session created")
	writeData(w, http.StatusCreated, wz.View())
}

func (s *Server) handleGet(w http.ResponseWriter, _ *http.Request, wz *booking.Wizard) {
	writeData(w, http.StatusOK, wz.View())
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	if !s.sessions.Delete(chi.URLParam(r, "id")) {
		s.writeError(w, r, nil, booking.ErrSessionNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleCalendar(w http.ResponseWriter, r *http.Request, wz *booking.Wizard) {
	var month calendar.YearMonth
	if raw := r.URL.Query().Get("month"); raw != "" {
		m, err := calendar.ParseYearMonth(raw)
		if err != nil {
			s.writeError(w, r, nil, apperr.Validation("month", "Month must look like 2006-01."))
			return
		}
		month = m
	}

	grid, err := wz.Calendar(r.Context(), month)
	if err != nil {
		s.writeError(w, r, wz, err)
		return
	}
	writeData(w, http.StatusOK, calendarResponse{
		Month:   grid.Month,
		Prev:    grid.Month.Prev(),
		Next:    grid.Month.Next(),
		Headers: calendar.WeekdayHeaders,
		Weeks:   grid.Weeks(),
	})
}

func (s *Server) handleService(w http.ResponseWriter, r *http.Request, wz *booking.Wizard) {
	var req serviceRequest
	if err := decode(w, r, &req); err != nil {
		s.writeError(w, r, wz, err)
		return
	}
	v, err := wz.SelectService(req.Service)
	s.respondView(w, r, wz, v, err)
}

func (s *Server) handleDate(w http.ResponseWriter, r *http.Request, wz *booking.Wizard) {
	var req dateRequest
	if err := decode(w, r, &req); err != nil {
		s.writeError(w, r, wz, err)
		return
	}
	d, err := calendar.ParseDate(req.Date)
	if err != nil {
		s.writeError(w, r, wz, apperr.Validation(booking.FieldDate, "Date must look like 2006-01-02."))
		return
	}
	v, err := wz.SelectDate(r.Context(), d)
	s.respondView(w, r, wz, v, err)
}

func (s *Server) handleTime(w http.ResponseWriter, r *http.Request, wz *booking.Wizard) {
	var req timeRequest
	if err := decode(w, r, &req); err != nil {
		s.writeError(w, r, wz, err)
		return
	}
	v, err := wz.SelectTime(req.Time)
	s.respondView(w, r, wz, v, err)
}

func (s *Server) handleContact(w http.ResponseWriter, r *http.Request, wz *booking.Wizard) {
	var req contactRequest
	if err := decode(w, r, &req); err != nil {
		s.writeError(w, r, wz, err)
		return
	}
	v, err := wz.SetContact(booking.Contact{Name: req.Name, Email: req.Email, Phone: req.Phone})
	if err == nil && req.SpecialRequests != nil {
		v, err = wz.SetSpecialRequests(*req.SpecialRequests)
	}
	s.respondView(w, r, wz, v, err)
}

func (s *Server) handlePaymentMethod(w http.ResponseWriter, r *http.Request, wz *booking.Wizard) {
	var req paymentMethodRequest
	if err := decode(w, r, &req); err != nil {
		s.writeError(w, r, wz, err)
		return
	}
	m, err := booking.ParsePaymentMethod(req.Method)
	if err != nil {
		s.writeError(w, r, wz, err)
		return
	}
	v, err := wz.SelectPaymentMethod(m)
	s.respondView(w, r, wz, v, err)
}

func (s *Server) handleCard(w http.ResponseWriter, r *http.Request, wz *booking.Wizard) {
	var req booking.CardStatus
	if err := decode(w, r, &req); err != nil {
		s.writeError(w, r, wz, err)
		return
	}
	v, err := wz.SetCardStatus(req)
	s.respondView(w, r, wz, v, err)
}

func (s *Server) handleNext(w http.ResponseWriter, r *http.Request, wz *booking.Wizard) {
	v, err := wz.Next()
	s.respondView(w, r, wz, v, err)
}

func (s *Server) handlePrevious(w http.ResponseWriter, r *http.Request, wz *booking.Wizard) {
	v, err := wz.Previous()
	s.respondView(w, r, wz, v, err)
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request, wz *booking.Wizard) {
	v, err := wz.Submit(r.Context())
	s.respondView(w, r, wz, v, err)
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request, wz *booking.Wizard) {
	v, err := wz.Cancel()
	s.respondView(w, r, wz, v, err)
}

func (s *Server) handleErrors(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	records, err := s.errors.Recent(r.Context(), limit)
	if err != nil {
		zerolog.Ctx(r.Context()).Error().Err(err).Msg("failed to read error log")
		writeFailure(w, http.StatusInternalServerError, "unexpected", "Could not read the error log.")
		return
	}
	writeData(w, http.StatusOK, records)
}

func (s *Server) handleErrorsXLSX(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", `attachment; filename="errors.xlsx"`)
	if err := s.errors.ExportXLSX(r.Context(), w); err != nil {
		zerolog.Ctx(r.Context()).Error().Err(err).Msg("failed to export error log")
	}
}

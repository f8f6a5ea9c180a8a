package bookingapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"massagebook/internal/apperr"
	"massagebook/internal/calendar"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return New(Options{BaseURL: srv.URL, APIKey: "secret", PractitionerID: "prac-1", Timeout: 2 * time.Second})
}

func TestClosedDates(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/web-booking/closed-dates", r.URL.Path)
		assert.Equal(t, "2026-10-16", r.URL.Query().Get("start_date"))
		assert.Equal(t, "2027-01-14", r.URL.Query().Get("end_date"))
		assert.Equal(t, "secret", r.Header.Get("x-api-key"))
		_, _ = w.Write([]byte(`{"success":true,"data":{"closed_dates":["2026-10-20","2026-12-25T00:00:00Z","garbage"]}}`))
	})

	start := calendar.NewDate(2026, time.October, 16)
	set, err := c.ClosedDates(context.Background(), start, start.AddDays(90))
	require.NoError(t, err)
	assert.Len(t, set, 2)
	assert.True(t, set.Has(calendar.NewDate(2026, time.October, 20)))
	assert.True(t, set.Has(calendar.NewDate(2026, time.December, 25)))
}

func TestAvailableSlots(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/bookings/availability/prac-1/2026-10-21", r.URL.Path)
		assert.Equal(t, "90min_massage", r.URL.Query().Get("service_type"))
		_, _ = w.Write([]byte(`{"success":true,"data":{"available_slots":[{"time":"09:00","display_time":"9:00 AM"},{"time":"14:30"}]}}`))
	})

	slots, err := c.AvailableSlots(context.Background(), calendar.NewDate(2026, time.October, 21), "90min_massage")
	require.NoError(t, err)
	require.Len(t, slots, 2)
	assert.Equal(t, Slot{Time: "09:00", DisplayTime: "9:00 AM"}, slots[0])
	assert.Empty(t, slots[1].DisplayTime)
}

func TestNetworkErrors(t *testing.T) {
	tests := []struct {
		name string
		h    http.HandlerFunc
	}{
		{"http 500", func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, "boom", http.StatusInternalServerError)
		}},
		{"success false", func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(`{"success":false,"error":"practitioner not found"}`))
		}},
		{"bad json", func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(`<html>`))
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, tt.h)
			_, err := c.AvailableSlots(context.Background(), calendar.NewDate(2026, time.October, 21), "60min_massage")
			require.Error(t, err)
			assert.Equal(t, apperr.KindNetwork, apperr.KindOf(err))
		})
	}
}

func TestUnreachableBackend(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()

	c := New(Options{BaseURL: srv.URL})
	_, err := c.ClosedDates(context.Background(), calendar.NewDate(2026, 1, 1), calendar.NewDate(2026, 3, 1))
	assert.Equal(t, apperr.KindNetwork, apperr.KindOf(err))
}

func TestBook(t *testing.T) {
	var got BookingRequest
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/web-booking/book", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"success":true,"data":{"session":{"id":"sess-42","scheduled_date":"2026-10-21T09:00:00"},"payment":{"receipt_number":"R-1001"}}}`))
	})

	res, err := c.Book(context.Background(), BookingRequest{
		ServiceType:   "90min_massage",
		Date:          "2026-10-21",
		Time:          "09:00",
		Client:        Customer{Name: "John Smith", Email: "john@example.com", Phone: "9405551234"},
		PaymentMethod: "cash",
	})
	require.NoError(t, err)
	assert.Equal(t, "R-1001", res.ConfirmationCode())
	assert.Equal(t, "sess-42", res.Session.ID)
	assert.Equal(t, "prac-1", got.PractitionerID)
	assert.Equal(t, "cash", got.PaymentMethod)
}

func TestBookFailure(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"success":false,"message":"slot taken"}`))
	})

	_, err := c.Book(context.Background(), BookingRequest{ServiceType: "60min_massage"})
	require.Error(t, err)
	assert.Equal(t, apperr.KindNetwork, apperr.KindOf(err))
	assert.Contains(t, err.Error(), "slot taken")
}

func TestConfirmationCodeFallsBackToSession(t *testing.T) {
	var r BookingResult
	r.Session.ID = "sess-7"
	assert.Equal(t, "sess-7", r.ConfirmationCode())
}

func TestCreatePaymentIntent(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var req PaymentIntentRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, int64(18000), req.AmountCents)
		_, _ = w.Write([]byte(`{"clientSecret":"pi_1_secret_x","paymentIntentId":"pi_1"}`))
	})

	pi, err := c.CreatePaymentIntent(context.Background(), PaymentIntentRequest{AmountCents: 18000, Currency: "usd"})
	require.NoError(t, err)
	assert.Equal(t, "pi_1", pi.PaymentIntentID)

	bad := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"error":"stripe not configured"}`))
	})
	_, err = bad.CreatePaymentIntent(context.Background(), PaymentIntentRequest{AmountCents: 100})
	assert.Equal(t, apperr.KindNetwork, apperr.KindOf(err))
}

func TestReportClientError(t *testing.T) {
	hits := 0
	c := New(Options{ClientErrorsPath: "/api/errors"})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		assert.Equal(t, "/api/errors", r.URL.Path)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()
	c.baseURL = srv.URL

	require.NoError(t, c.ReportClientError(context.Background(), ClientErrorReport{ID: "1", Message: "x"}))
	assert.Equal(t, 1, hits)
}

func TestHealthCheck(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/healthz" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusOK)
	})
	assert.NoError(t, c.HealthCheck(context.Background()))
}

package errlog

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"massagebook/internal/apperr"
	"massagebook/internal/bookingapi"
	"massagebook/internal/payment"
)

type fakeReporter struct {
	mu      sync.Mutex
	reports []bookingapi.ClientErrorReport
	err     error
}

func (f *fakeReporter) ReportClientError(_ context.Context, r bookingapi.ClientErrorReport) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reports = append(f.reports, r)
	return f.err
}

func (f *fakeReporter) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.reports)
}

var t0 = time.Date(2026, 10, 16, 10, 0, 0, 0, time.UTC)

func rec(id string, at time.Time) Record {
	return Record{ID: id, Time: at, Level: "error", Category: CategoryGeneral, Message: id}
}

func ids(rs []Record) []string {
	out := make([]string, len(rs))
	for i, r := range rs {
		out[i] = r.ID
	}
	return out
}

func TestMemoryStoreRing(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(3)

	for i := 1; i <= 5; i++ {
		require.NoError(t, s.Append(ctx, rec(fmt.Sprintf("r%d", i), t0.Add(time.Duration(i)*time.Minute))))
	}

	all, err := s.Recent(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"r5", "r4", "r3"}, ids(all))

	two, err := s.Recent(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"r5", "r4"}, ids(two))
}

func TestMemoryStoreEvict(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(4)
	for i := 1; i <= 4; i++ {
		require.NoError(t, s.Append(ctx, rec(fmt.Sprintf("r%d", i), t0.Add(time.Duration(i)*time.Hour))))
	}

	n, err := s.EvictBefore(ctx, t0.Add(3*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	require.NoError(t, s.Append(ctx, rec("r5", t0.Add(5*time.Hour))))
	all, _ := s.Recent(ctx, 0)
	assert.Equal(t, []string{"r5", "r4", "r3"}, ids(all))
}

func TestSQLiteStore(t *testing.T) {
	ctx := context.Background()
	s, err := OpenSQLite(filepath.Join(t.TempDir(), "errors.db"), 3)
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.Ping(ctx))

	for i := 1; i <= 4; i++ {
		r := rec(fmt.Sprintf("r%d", i), t0.Add(time.Duration(i)*time.Hour))
		if i == 4 {
			r.Fields = map[string]string{"step": "booking-summary"}
		}
		require.NoError(t, s.Append(ctx, r))
	}

	all, err := s.Recent(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"r4", "r3", "r2"}, ids(all))
	assert.Equal(t, "booking-summary", all[0].Fields["step"])
	assert.True(t, all[0].Time.Equal(t0.Add(4*time.Hour)))

	n, err := s.EvictBefore(ctx, t0.Add(3*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	all, err = s.Recent(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"r4", "r3"}, ids(all))
}

func newTestHandler(fwd Reporter) (*Handler, *MemoryStore) {
	store := NewMemoryStore(10)
	h := New(store, zerolog.Nop(), Options{
		OfficePhone: "(555) 010-2030",
		Forward:     fwd,
		Now:         func() time.Time { return t0 },
	})
	return h, store
}

func TestLogErrorCategories(t *testing.T) {
	ctx := context.Background()
	h, _ := newTestHandler(nil)

	cases := []struct {
		err      error
		category string
		level    string
	}{
		{apperr.Validation("email", "Enter a valid email."), CategoryValidation, "warn"},
		{apperr.Network("slots", errors.New("timeout")), CategoryNetwork, "error"},
		{apperr.Payment(payment.CodeCardDeclined, "declined", nil), CategoryPayment, "error"},
		{errors.New("boom"), CategoryGeneral, "error"},
	}
	for _, tc := range cases {
		r := h.LogError(ctx, tc.err, nil)
		assert.Equal(t, tc.category, r.Category, tc.err.Error())
		assert.Equal(t, tc.level, r.Level, tc.err.Error())
	}

	recent, err := h.Recent(ctx, 0)
	require.NoError(t, err)
	require.Len(t, recent, 4)
	assert.Equal(t, CategoryGeneral, recent[0].Category)
	assert.Equal(t, "validation", recent[3].Fields["kind"])
	assert.Equal(t, "email", recent[3].Fields["field"])
}

func TestForwardsOnlyErrorLevel(t *testing.T) {
	ctx := context.Background()
	fwd := &fakeReporter{err: errors.New("backend down")}
	h, _ := newTestHandler(fwd)

	h.Log(ctx, zerolog.InfoLevel, CategoryBooking, "booking confirmed", nil)
	h.LogError(ctx, apperr.Validation("name", "Enter your full name."), nil)
	h.BookingError(ctx, apperr.Network("book", errors.New("502")))
	h.Stop()

	require.Equal(t, 1, fwd.count())
	report := fwd.reports[0]
	assert.Equal(t, CategoryBooking, report.Category)
	assert.Equal(t, "error", report.Level)
	assert.Equal(t, "massagebook", report.Source)
	assert.Equal(t, t0.Format(time.RFC3339Nano), report.Timestamp)
}

func TestEvictionLoop(t *testing.T) {
	ctx := context.Background()
	h, store := newTestHandler(nil)
	require.NoError(t, store.Append(ctx, rec("old", t0.Add(-25*time.Hour))))
	require.NoError(t, store.Append(ctx, rec("new", t0.Add(-time.Hour))))

	h.Start()
	h.Start()
	require.Eventually(t, func() bool {
		all, _ := store.Recent(ctx, 0)
		return len(all) == 1
	}, time.Second, 10*time.Millisecond)
	h.Stop()
	h.Stop()

	all, _ := store.Recent(ctx, 0)
	assert.Equal(t, []string{"new"}, ids(all))
}

func TestNoticeFor(t *testing.T) {
	phone := "(555) 010-2030"

	n := NoticeFor(apperr.Payment(payment.CodeCardDeclined, "Your card was declined.", nil), phone)
	assert.Equal(t, "Payment failed", n.Title)
	assert.Equal(t, "Your card was declined.", n.Message)
	assert.Contains(t, n.Remediation, "different card")

	n = NoticeFor(apperr.Network("book", errors.New("eof")), phone)
	assert.Equal(t, "Connection problem", n.Title)
	assert.Contains(t, n.Remediation, phone)
	assert.NotContains(t, n.Message, "eof")

	n = NoticeFor(errors.New("nil pointer"), "")
	assert.Equal(t, "Something went wrong", n.Title)
	assert.NotContains(t, n.Message, "nil pointer")
	assert.Equal(t, "Please try again in a few minutes.", n.Remediation)

	n = NoticeFor(apperr.Validation("phone", "Enter a valid phone number."), phone)
	assert.Equal(t, "Enter a valid phone number.", n.Message)
}

func TestRecover(t *testing.T) {
	h, store := newTestHandler(nil)
	srv := httptest.NewServer(h.Recover(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("kaboom")
	})))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/sessions")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	var body panicBody
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.False(t, body.Success)
	assert.Equal(t, "unexpected", body.Error.Kind)
	assert.Contains(t, body.Error.Notice.Remediation, "(555) 010-2030")

	all, _ := store.Recent(context.Background(), 0)
	require.Len(t, all, 1)
	assert.Equal(t, CategoryUncaught, all[0].Category)
	assert.Equal(t, "panic: kaboom", all[0].Message)
	assert.Equal(t, "/api/sessions", all[0].Fields["path"])
	assert.NotEmpty(t, all[0].Stack)
}

func TestGoRecordsPanic(t *testing.T) {
	h, store := newTestHandler(nil)
	h.Go(context.Background(), "cleanup", func(context.Context) error { panic("bad") })

	require.Eventually(t, func() bool {
		all, _ := store.Recent(context.Background(), 0)
		return len(all) == 1 && all[0].Fields["task"] == "cleanup"
	}, time.Second, 10*time.Millisecond)
}

func TestExportXLSX(t *testing.T) {
	ctx := context.Background()
	h, _ := newTestHandler(nil)
	h.LogError(ctx, apperr.Network("slots", errors.New("timeout")), map[string]string{"date": "2026-10-21"})
	h.Log(ctx, zerolog.WarnLevel, CategoryBooking, "slow backend", nil)

	var buf bytes.Buffer
	require.NoError(t, h.ExportXLSX(ctx, &buf))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(exportSheet)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, exportColumns, rows[0])
	assert.Equal(t, "slow backend", rows[1][3])
	assert.Equal(t, CategoryNetwork, rows[2][2])
	assert.Equal(t, "code=slots date=2026-10-21 kind=network", rows[2][4])
}

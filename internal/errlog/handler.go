// Package errlog is the process-wide error handler: it records errors in a
// capped store, evicts old records on a schedule, optionally forwards them to
// the backend, and turns errors into user-facing notices.
//
// Nothing here retries. A failed store write or forward is logged and dropped.
package errlog

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"massagebook/internal/apperr"
	"massagebook/internal/bookingapi"
	"massagebook/internal/metrics"
)

const (
	defaultMaxAge      = 24 * time.Hour
	defaultEvictEvery  = time.Hour
	forwardTimeout     = 5 * time.Second
	clientErrorsSource = "massagebook"
)

// Reporter receives forwarded error records.
type Reporter interface {
	ReportClientError(ctx context.Context, report bookingapi.ClientErrorReport) error
}

// Options configures a Handler.
type Options struct {
	MaxAge      time.Duration
	EvictEvery  time.Duration
	OfficePhone string
	// Forward, when set, receives every error-level record.
	Forward Reporter
	Now     func() time.Time
}

// Handler records errors. Construct one per process.
type Handler struct {
	store Store
	log   zerolog.Logger
	opts  Options

	stopCh  chan struct{}
	wg      sync.WaitGroup
	mu      sync.Mutex
	running bool
}

// New returns a handler writing to store.
func New(store Store, logger zerolog.Logger, opts Options) *Handler {
	if opts.MaxAge <= 0 {
		opts.MaxAge = defaultMaxAge
	}
	if opts.EvictEvery <= 0 {
		opts.EvictEvery = defaultEvictEvery
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Handler{
		store:  store,
		log:    logger,
		opts:   opts,
		stopCh: make(chan struct{}),
	}
}

// Start runs eviction immediately and then every EvictEvery until Stop.
func (h *Handler) Start() {
	h.mu.Lock()
	if h.running {
		h.mu.Unlock()
		return
	}
	h.running = true
	h.mu.Unlock()

	h.wg.Add(1)
	go h.loop()

	h.log.Info().
		Dur("evict_every", h.opts.EvictEvery).
		Dur("max_age", h.opts.MaxAge).
		Msg("Error handler started")
}

// Stop ends the eviction loop and waits for pending forwards.
func (h *Handler) Stop() {
	h.mu.Lock()
	if !h.running {
		h.mu.Unlock()
		h.wg.Wait()
		return
	}
	h.running = false
	h.mu.Unlock()

	close(h.stopCh)
	h.wg.Wait()
	h.log.Info().Msg("Error handler stopped")
}

func (h *Handler) loop() {
	defer h.wg.Done()

	h.EvictExpired(context.Background())

	ticker := time.NewTicker(h.opts.EvictEvery)
	defer ticker.Stop()

	for {
		select {
		case <-h.stopCh:
			return
		case <-ticker.C:
			h.EvictExpired(context.Background())
		}
	}
}

// EvictExpired drops records older than MaxAge.
func (h *Handler) EvictExpired(ctx context.Context) int {
	n, err := h.store.EvictBefore(ctx, h.opts.Now().Add(-h.opts.MaxAge))
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to evict error records")
		return 0
	}
	if n > 0 {
		h.log.Debug().Int("removed", n).Msg("Evicted expired error records")
	}
	return n
}

// Log records a message at level.
func (h *Handler) Log(ctx context.Context, level zerolog.Level, category, msg string, fields map[string]string) Record {
	r := newRecord(h.opts.Now(), level, category, msg, fields)
	h.write(ctx, r, nil)
	return r
}

// LogPanic records a recovered panic with its stack.
func (h *Handler) LogPanic(ctx context.Context, v any, stack []byte, fields map[string]string) Record {
	r := newRecord(h.opts.Now(), zerolog.ErrorLevel, CategoryUncaught, fmt.Sprintf("panic: %v", v), fields)
	r.Stack = string(stack)
	h.write(ctx, r, nil)
	return r
}

// LogError records err under the category matching its kind.
func (h *Handler) LogError(ctx context.Context, err error, fields map[string]string) Record {
	return h.logErr(ctx, categoryOf(err), err, fields)
}

func (h *Handler) logErr(ctx context.Context, category string, err error, fields map[string]string) Record {
	level := zerolog.ErrorLevel
	if apperr.IsValidation(err) {
		level = zerolog.WarnLevel
	}
	fields = withKind(fields, err)
	r := newRecord(h.opts.Now(), level, category, err.Error(), fields)
	h.write(ctx, r, err)
	return r
}

// BookingError records a booking failure and returns the notice to show.
func (h *Handler) BookingError(ctx context.Context, err error) Notice {
	h.logErr(ctx, CategoryBooking, err, nil)
	return h.NoticeFor(err)
}

// PaymentError records a payment failure and returns the notice to show.
func (h *Handler) PaymentError(ctx context.Context, err error) Notice {
	h.logErr(ctx, CategoryPayment, err, nil)
	return h.NoticeFor(err)
}

// Report records err according to its kind and returns the notice to show.
// Validation errors are the user's to fix and are not stored.
func (h *Handler) Report(ctx context.Context, err error) Notice {
	switch apperr.KindOf(err) {
	case apperr.KindValidation:
		zerolog.Ctx(ctx).Debug().Err(err).Msg("input rejected")
	case apperr.KindNetwork:
		h.BookingError(ctx, err)
	case apperr.KindPayment:
		h.PaymentError(ctx, err)
	default:
		h.LogError(ctx, err, nil)
	}
	return h.NoticeFor(err)
}

// Recent returns up to limit records, newest first.
func (h *Handler) Recent(ctx context.Context, limit int) ([]Record, error) {
	return h.store.Recent(ctx, limit)
}

func (h *Handler) write(ctx context.Context, r Record, cause error) {
	metrics.IncErrorLogged(r.Category)

	l := zerolog.Ctx(ctx)
	if l.GetLevel() == zerolog.Disabled {
		l = &h.log
	}
	lvl, _ := zerolog.ParseLevel(r.Level)
	ev := l.WithLevel(lvl).Str("record_id", r.ID).Str("category", r.Category)
	for k, v := range r.Fields {
		ev = ev.Str(k, v)
	}
	if r.Stack != "" {
		ev = ev.Str("stack", r.Stack)
	}
	if cause != nil {
		ev = ev.Err(cause)
	}
	ev.Msg(r.Message)

	if err := h.store.Append(ctx, r); err != nil {
		h.log.Error().Err(err).Str("record_id", r.ID).Msg("Failed to store error record")
	}

	if h.opts.Forward != nil && r.IsError() {
		h.forward(r)
	}
}

// forward sends r in the background; the outcome is only logged.
func (h *Handler) forward(r Record) {
	h.wg.Add(1)
	go func() {
		defer h.wg.Done()

		ctx, cancel := context.WithTimeout(context.Background(), forwardTimeout)
		defer cancel()

		err := h.opts.Forward.ReportClientError(ctx, bookingapi.ClientErrorReport{
			ID:        r.ID,
			Timestamp: r.Time.Format(time.RFC3339Nano),
			Level:     r.Level,
			Category:  r.Category,
			Message:   r.Message,
			Fields:    r.Fields,
			Source:    clientErrorsSource,
		})
		if err != nil {
			h.log.Warn().Err(err).Str("record_id", r.ID).Msg("Failed to forward error record")
		}
	}()
}

func categoryOf(err error) string {
	switch apperr.KindOf(err) {
	case apperr.KindValidation:
		return CategoryValidation
	case apperr.KindNetwork:
		return CategoryNetwork
	case apperr.KindPayment:
		return CategoryPayment
	default:
		return CategoryGeneral
	}
}

func withKind(fields map[string]string, err error) map[string]string {
	e, ok := apperr.As(err)
	if !ok {
		return fields
	}
	out := make(map[string]string, len(fields)+3)
	for k, v := range fields {
		out[k] = v
	}
	out["kind"] = string(e.Kind)
	if e.Field != "" {
		out["field"] = e.Field
	}
	if e.Code != "" {
		out["code"] = e.Code
	}
	return out
}

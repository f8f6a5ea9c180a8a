// Package timeslots loads and presents the open start times for a date.
//
// A View owns at most one in-flight load. Starting a new load cancels the
// previous one; a load that finishes after being superseded never touches
// the view and reports ErrSuperseded.
package timeslots

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"massagebook/internal/bookingapi"
	"massagebook/internal/calendar"
	"massagebook/internal/metrics"
)

// ErrSuperseded is returned by a load that a newer load replaced.
var ErrSuperseded = errors.New("slot load superseded")

// NoAvailableTimes is shown when a date has no open slots.
const NoAvailableTimes = "No available times"

const loadFailedMessage = "Unable to load available times."

// Status of the slot list.
type Status string

const (
	StatusIdle    Status = "idle"
	StatusLoading Status = "loading"
	StatusReady   Status = "ready"
	StatusEmpty   Status = "empty"
	StatusError   Status = "error"
)

// Fetcher returns open slots for a date and service.
type Fetcher interface {
	AvailableSlots(ctx context.Context, date calendar.Date, serviceType string) ([]bookingapi.Slot, error)
}

// Button is one clickable time.
type Button struct {
	Time  string `json:"time"`
	Label string `json:"label"`
}

// Snapshot is the view's state at one moment.
type Snapshot struct {
	Status      Status            `json:"status"`
	Date        calendar.Date     `json:"date"`
	ServiceType string            `json:"service_type,omitempty"`
	Slots       []bookingapi.Slot `json:"-"`
	Buttons     []Button          `json:"buttons,omitempty"`
	Message     string            `json:"message,omitempty"`
	Err         error             `json:"-"`
}

// For reports whether the snapshot belongs to date and serviceType.
func (s Snapshot) For(date calendar.Date, serviceType string) bool {
	return s.Date == date && s.ServiceType == serviceType
}

// View tracks slot loads for one wizard.
type View struct {
	fetcher Fetcher

	mu     sync.Mutex
	gen    uint64
	cancel context.CancelFunc
	snap   Snapshot
}

// NewView returns an idle view.
func NewView(fetcher Fetcher) *View {
	return &View{fetcher: fetcher, snap: Snapshot{Status: StatusIdle}}
}

// Load is a running fetch started by Start.
type Load struct {
	gen  uint64
	done chan struct{}
	snap Snapshot
	err  error
}

// Wait blocks until the fetch finishes.
func (l *Load) Wait() (Snapshot, error) {
	<-l.done
	return l.snap, l.err
}

// Start begins loading slots for date and serviceType and returns at once.
// Any earlier load is cancelled. Start does no I/O itself.
func (v *View) Start(ctx context.Context, date calendar.Date, serviceType string) *Load {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.cancel != nil {
		v.cancel()
	}
	v.gen++

	loadCtx, cancel := context.WithCancel(ctx)
	v.cancel = cancel
	v.snap = Snapshot{Status: StatusLoading, Date: date, ServiceType: serviceType}

	l := &Load{gen: v.gen, done: make(chan struct{})}
	go v.run(loadCtx, cancel, l, date, serviceType)
	return l
}

// Load starts a fetch and waits for it.
func (v *View) Load(ctx context.Context, date calendar.Date, serviceType string) (Snapshot, error) {
	return v.Start(ctx, date, serviceType).Wait()
}

func (v *View) run(ctx context.Context, cancel context.CancelFunc, l *Load, date calendar.Date, serviceType string) {
	defer close(l.done)
	defer cancel()

	logger := zerolog.Ctx(ctx)
	started := time.Now()
	slots, err := v.fetcher.AvailableSlots(ctx, date, serviceType)
	took := time.Since(started)

	v.mu.Lock()
	defer v.mu.Unlock()

	if l.gen != v.gen {
		metrics.ObserveSlotFetch("superseded", took)
		logger.Debug().Str("date", date.String()).Msg("discarding superseded slot load")
		l.err = ErrSuperseded
		return
	}
	v.cancel = nil

	snap := Snapshot{Date: date, ServiceType: serviceType}
	switch {
	case err != nil:
		metrics.ObserveSlotFetch("error", took)
		logger.Warn().Err(err).Str("date", date.String()).Str("service", serviceType).Msg("slot load failed")
		snap.Status = StatusError
		snap.Message = loadFailedMessage
		snap.Err = err
		l.err = err
	case len(slots) == 0:
		metrics.ObserveSlotFetch("empty", took)
		snap.Status = StatusEmpty
		snap.Message = NoAvailableTimes
	default:
		metrics.ObserveSlotFetch("ready", took)
		snap.Status = StatusReady
		snap.Slots = slots
		snap.Buttons = buttons(slots)
	}

	v.snap = snap
	l.snap = snap
}

// Snapshot returns the current state.
func (v *View) Snapshot() Snapshot {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.snap
}

// Select returns the slot for time from the ready list.
func (v *View) Select(t string) (bookingapi.Slot, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.snap.Status != StatusReady {
		return bookingapi.Slot{}, false
	}
	for _, s := range v.snap.Slots {
		if s.Time == t {
			return s, true
		}
	}
	return bookingapi.Slot{}, false
}

// Reset cancels any in-flight load and returns the view to idle.
func (v *View) Reset() {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.cancel != nil {
		v.cancel()
		v.cancel = nil
	}
	v.gen++
	v.snap = Snapshot{Status: StatusIdle}
}

func buttons(slots []bookingapi.Slot) []Button {
	out := make([]Button, 0, len(slots))
	for _, s := range slots {
		out = append(out, Button{Time: s.Time, Label: Label(s)})
	}
	return out
}

// Label is the server display string, or a 12-hour rendering of the time.
func Label(s bookingapi.Slot) string {
	if label := strings.TrimSpace(s.DisplayTime); label != "" {
		return label
	}
	return FormatTime12(s.Time)
}

// FormatTime12 renders "14:30" as "2:30 PM". Unparseable input is returned unchanged.
func FormatTime12(hhmm string) string {
	for _, layout := range []string{"15:04", "15:04:05"} {
		if t, err := time.Parse(layout, hhmm); err == nil {
			return t.Format("3:04 PM")
		}
	}
	return hhmm
}

// String is used in logs.
func (s Snapshot) String() string {
	return fmt.Sprintf("%s %s %s (%d slots)", s.Status, s.Date, s.ServiceType, len(s.Slots))
}

package timeslots

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"massagebook/internal/apperr"
	"massagebook/internal/bookingapi"
	"massagebook/internal/calendar"
)

type fakeFetcher struct {
	mu    sync.Mutex
	slots map[calendar.Date][]bookingapi.Slot
	err   error
	calls int
	// gate, when set for a date, blocks that fetch until closed or cancelled.
	gate map[calendar.Date]chan struct{}
}

func (f *fakeFetcher) AvailableSlots(ctx context.Context, date calendar.Date, _ string) ([]bookingapi.Slot, error) {
	f.mu.Lock()
	f.calls++
	gate := f.gate[date]
	f.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, apperr.Network("availability", ctx.Err())
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.slots[date], nil
}

var (
	oct21 = calendar.NewDate(2026, time.October, 21)
	oct22 = calendar.NewDate(2026, time.October, 22)
)

func TestLoadReady(t *testing.T) {
	f := &fakeFetcher{slots: map[calendar.Date][]bookingapi.Slot{
		oct21: {{Time: "09:00", DisplayTime: "9:00 AM"}, {Time: "14:30"}},
	}}
	v := NewView(f)

	snap, err := v.Load(context.Background(), oct21, "90min_massage")
	require.NoError(t, err)
	assert.Equal(t, StatusReady, snap.Status)
	assert.Equal(t, []Button{{Time: "09:00", Label: "9:00 AM"}, {Time: "14:30", Label: "2:30 PM"}}, snap.Buttons)
	assert.True(t, snap.For(oct21, "90min_massage"))

	slot, ok := v.Select("14:30")
	assert.True(t, ok)
	assert.Equal(t, "14:30", slot.Time)

	_, ok = v.Select("15:00")
	assert.False(t, ok)
}

func TestLoadEmpty(t *testing.T) {
	v := NewView(&fakeFetcher{})

	snap, err := v.Load(context.Background(), oct21, "60min_massage")
	require.NoError(t, err)
	assert.Equal(t, StatusEmpty, snap.Status)
	assert.Equal(t, NoAvailableTimes, snap.Message)
	assert.Empty(t, snap.Buttons)

	_, ok := v.Select("09:00")
	assert.False(t, ok)
}

func TestLoadErrorIsNotRetried(t *testing.T) {
	f := &fakeFetcher{err: apperr.Network("availability", errors.New("http 503"))}
	v := NewView(f)

	snap, err := v.Load(context.Background(), oct21, "60min_massage")
	require.Error(t, err)
	assert.Equal(t, apperr.KindNetwork, apperr.KindOf(err))
	assert.Equal(t, StatusError, snap.Status)
	assert.NotEmpty(t, snap.Message)
	assert.Equal(t, 1, f.calls)
}

func TestNewLoadSupersedesInFlight(t *testing.T) {
	f := &fakeFetcher{
		slots: map[calendar.Date][]bookingapi.Slot{
			oct21: {{Time: "09:00"}},
			oct22: {{Time: "11:00"}},
		},
		gate: map[calendar.Date]chan struct{}{oct21: make(chan struct{})},
	}
	v := NewView(f)

	first := v.Start(context.Background(), oct21, "60min_massage")
	assert.Equal(t, StatusLoading, v.Snapshot().Status)

	snap, err := v.Load(context.Background(), oct22, "60min_massage")
	require.NoError(t, err)
	assert.Equal(t, oct22, snap.Date)

	_, err = first.Wait()
	assert.ErrorIs(t, err, ErrSuperseded)

	current := v.Snapshot()
	assert.Equal(t, oct22, current.Date)
	assert.Equal(t, "11:00", current.Buttons[0].Time)
}

func TestSupersededResultIsDiscardedEvenIfItCompletes(t *testing.T) {
	gate := make(chan struct{})
	f := &fakeFetcher{
		slots: map[calendar.Date][]bookingapi.Slot{oct21: {{Time: "09:00"}}},
		gate:  map[calendar.Date]chan struct{}{oct21: gate},
	}
	v := NewView(f)

	first := v.Start(context.Background(), oct21, "60min_massage")
	v.Reset()
	close(gate)

	_, err := first.Wait()
	assert.ErrorIs(t, err, ErrSuperseded)
	assert.Equal(t, StatusIdle, v.Snapshot().Status)
}

func TestFormatTime12(t *testing.T) {
	tests := map[string]string{
		"14:30":    "2:30 PM",
		"09:00":    "9:00 AM",
		"00:15":    "12:15 AM",
		"12:00":    "12:00 PM",
		"16:45:00": "4:45 PM",
		"noon":     "noon",
	}
	for in, want := range tests {
		assert.Equal(t, want, FormatTime12(in), in)
	}
}

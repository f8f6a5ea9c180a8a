package booking

import (
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"massagebook/internal/pricing"
)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newTestStore(c *clock) *SessionStore {
	return NewSessionStore(30*time.Minute, func(id string) *Wizard {
		return NewWizard(id, Deps{
			Catalog: pricing.Default(),
			Backend: newFakeBackend(),
			Logger:  zerolog.Nop(),
		}, Config{Location: time.UTC, Now: c.Now})
	})
}

func TestSessionStoreCreateAndGet(t *testing.T) {
	ss := newTestStore(&clock{now: testNow})

	w := ss.Create()
	require.NotEmpty(t, w.ID())

	got, err := ss.Get(w.ID())
	require.NoError(t, err)
	assert.Same(t, w, got)

	_, err = ss.Get("missing")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestSessionStoreExpiry(t *testing.T) {
	c := &clock{now: testNow}
	ss := newTestStore(c)
	w := ss.Create()

	c.Advance(20 * time.Minute)
	_, err := w.SelectService("60min")
	require.NoError(t, err)

	c.Advance(20 * time.Minute)
	_, err = ss.Get(w.ID())
	require.NoError(t, err, "activity refreshes the idle timer")

	c.Advance(31 * time.Minute)
	_, err = ss.Get(w.ID())
	assert.ErrorIs(t, err, ErrSessionNotFound)
	assert.Equal(t, 0, ss.Len())
}

func TestSessionStoreCleanup(t *testing.T) {
	c := &clock{now: testNow}
	ss := newTestStore(c)
	ss.Create()
	ss.Create()

	c.Advance(time.Hour)
	fresh := ss.Create()

	assert.Equal(t, 2, ss.Cleanup())
	assert.Equal(t, 1, ss.Len())
	_, err := ss.Get(fresh.ID())
	assert.NoError(t, err)
}

func TestSessionStoreGetOrCreate(t *testing.T) {
	ss := newTestStore(&clock{now: testNow})

	a := ss.GetOrCreate("tg:42")
	b := ss.GetOrCreate("tg:42")
	assert.Same(t, a, b)

	c := ss.Reset("tg:42")
	assert.NotSame(t, a, c)

	assert.True(t, ss.Delete("tg:42"))
	assert.False(t, ss.Delete("tg:42"))
}

func TestSessionStoreExpiredDeleteKeepsReplacement(t *testing.T) {
	c := &clock{now: testNow}
	ss := newTestStore(c)
	old := ss.Create()
	c.Advance(time.Hour)

	fresh := ss.Reset(old.ID())
	assert.False(t, ss.deleteIfSame(old.ID(), old))

	got, err := ss.Get(old.ID())
	require.NoError(t, err)
	assert.Same(t, fresh, got)
}

package extension

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCommands struct {
	mu       sync.Mutex
	updated  []string
	settings []Settings
}

func (c *fakeCommands) CreateRoom(context.Context, string, string) error { return nil }

func (c *fakeCommands) JoinRoom(context.Context, string, string) error { return nil }

func (c *fakeCommands) UpdateRoom(_ context.Context, url string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.updated = append(c.updated, url)

	return nil
}

func (c *fakeCommands) ApplySettings(settings Settings) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.settings = append(c.settings, settings)
}

// fakeProber answers "not yet" until readyAfter probes have happened.
type fakeProber struct {
	mu         sync.Mutex
	probes     int
	readyAfter int
	cmds       *fakeCommands
}

func (p *fakeProber) Probe(context.Context) (RoomCommands, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.probes++
	if p.readyAfter > 0 && p.probes >= p.readyAfter {
		return p.cmds, nil
	}

	return nil, nil
}

func (p *fakeProber) probeCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.probes
}

func TestAwaitBecomesReady(t *testing.T) {
	prober := &fakeProber{readyAfter: 3, cmds: &fakeCommands{}}
	h := NewHandle(prober, &Config{ProbeInterval: time.Millisecond, ProbeAttempts: 10})

	cmds, err := h.Await(context.Background())
	require.NoError(t, err)
	require.NotNil(t, cmds)
	assert.Equal(t, StatusReady, h.Status())

	// a resolved handle answers without probing again
	probes := prober.probeCount()
	cmds2, err := h.Await(context.Background())
	require.NoError(t, err)
	assert.Same(t, cmds, cmds2)
	assert.Equal(t, probes, prober.probeCount())
}

func TestAwaitFallsBackThenGivesUp(t *testing.T) {
	prober := &fakeProber{}
	fallbacks := 0
	h := NewHandle(prober, &Config{
		ProbeInterval: time.Millisecond,
		ProbeAttempts: 3,
		FallbackLoad: func(context.Context) error {
			fallbacks++
			return nil
		},
	})

	_, err := h.Await(context.Background())
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.Equal(t, 1, fallbacks, "fallback load path is tried exactly once")
	assert.Equal(t, 6, prober.probeCount(), "both rounds get the full probe budget")
	assert.Equal(t, StatusUnavailable, h.Status())
}

func TestUnavailableIsTerminal(t *testing.T) {
	prober := &fakeProber{}
	h := NewHandle(prober, &Config{ProbeInterval: time.Millisecond, ProbeAttempts: 2})

	_, err := h.Await(context.Background())
	require.ErrorIs(t, err, ErrUnavailable)

	// later calls fail immediately, no probing
	probes := prober.probeCount()
	_, err = h.Await(context.Background())
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.Equal(t, probes, prober.probeCount())
}

func TestRetryResetsUnavailable(t *testing.T) {
	prober := &fakeProber{cmds: &fakeCommands{}}
	h := NewHandle(prober, &Config{ProbeInterval: time.Millisecond, ProbeAttempts: 2})

	_, err := h.Await(context.Background())
	require.ErrorIs(t, err, ErrUnavailable)

	// the capability shows up late; a manual retry must find it
	prober.mu.Lock()
	prober.readyAfter = prober.probes + 1
	prober.mu.Unlock()
	h.Retry()
	require.Equal(t, StatusPending, h.Status())

	cmds, err := h.Await(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, cmds)
	assert.Equal(t, StatusReady, h.Status())
}

func TestAwaitHonorsContext(t *testing.T) {
	prober := &fakeProber{}
	h := NewHandle(prober, &Config{ProbeInterval: 50 * time.Millisecond, ProbeAttempts: 1000})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := h.Await(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

// Package extension wraps the co-viewing browser extension capability. The
// capability is injected into the runtime asynchronously and may never show
// up, so readiness is an awaited signal with a bounded probe budget and one
// fallback load path before giving up for good.
package extension

import (
	"context"
	"errors"
	"sync"
	"time"
)

var ErrUnavailable = errors.New("extension capability unavailable")

type Status string

const (
	StatusPending     Status = "pending"
	StatusReady       Status = "ready"
	StatusUnavailable Status = "unavailable"
)

// Settings is the one-way settings command schema. Delivery is never
// confirmed; callers must not assume the extension applied it.
type Settings struct {
	MinimizeUI bool `json:"minimize_ui"`
}

// RoomCommands is the command surface of the injected capability. The
// extension's internal room-matching protocol stays opaque behind it.
type RoomCommands interface {
	CreateRoom(ctx context.Context, name, secret string) error
	JoinRoom(ctx context.Context, name, secret string) error
	UpdateRoom(ctx context.Context, url string) error
	ApplySettings(settings Settings)
}

// Prober reports whether the capability has been injected yet. A nil result
// without an error means "not yet".
type Prober interface {
	Probe(ctx context.Context) (RoomCommands, error)
}

type Config struct {
	// ProbeInterval is the readiness poll period.
	ProbeInterval time.Duration
	// ProbeAttempts is how many polls each load path gets.
	ProbeAttempts int
	// FallbackLoad is the secondary load path, tried once after the first
	// round of probes is exhausted.
	FallbackLoad func(ctx context.Context) error
}

type Handle struct {
	prober   Prober
	interval time.Duration
	attempts int
	fallback func(ctx context.Context) error

	mu     sync.Mutex
	status Status
	cmds   RoomCommands
}

func NewHandle(prober Prober, cfg *Config) *Handle {
	h := Handle{
		prober:   prober,
		interval: cfg.ProbeInterval,
		attempts: cfg.ProbeAttempts,
		fallback: cfg.FallbackLoad,
		status:   StatusPending,
	}

	if h.interval <= 0 {
		h.interval = time.Second
	}
	if h.attempts <= 0 {
		h.attempts = 10
	}

	return &h
}

// Await resolves the capability, probing until it appears or both load paths
// are exhausted. Exhaustion is terminal: later calls fail immediately until
// Retry resets the handle.
func (h *Handle) Await(ctx context.Context) (RoomCommands, error) {
	h.mu.Lock()
	switch h.status {
	case StatusReady:
		cmds := h.cmds
		h.mu.Unlock()
		return cmds, nil
	case StatusUnavailable:
		h.mu.Unlock()
		return nil, ErrUnavailable
	}
	h.mu.Unlock()

	fallbackTried := false
	remaining := h.attempts

	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	for {
		cmds, err := h.prober.Probe(ctx)
		if err == nil && cmds != nil {
			h.mu.Lock()
			h.status = StatusReady
			h.cmds = cmds
			h.mu.Unlock()
			return cmds, nil
		}

		remaining--
		if remaining <= 0 {
			if fallbackTried || h.fallback == nil {
				h.mu.Lock()
				h.status = StatusUnavailable
				h.mu.Unlock()
				return nil, ErrUnavailable
			}

			fallbackTried = true
			remaining = h.attempts
			if err := h.fallback(ctx); err != nil {
				h.mu.Lock()
				h.status = StatusUnavailable
				h.mu.Unlock()
				return nil, ErrUnavailable
			}
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

func (h *Handle) Status() Status {
	h.mu.Lock()
	defer h.mu.Unlock()

	return h.status
}

// Retry resets a terminally unavailable handle so Await can be attempted
// again, backing the manual retry action in the UI.
func (h *Handle) Retry() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.status == StatusUnavailable {
		h.status = StatusPending
	}
}

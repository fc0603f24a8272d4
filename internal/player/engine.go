package player

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/selfcinema/server/internal/domain"
)

type State string

const (
	StateIdle         State = "idle"
	StateInitializing State = "initializing"
	StateReady        State = "ready"
	StatePlaying      State = "playing"
	StatePaused       State = "paused"
	StateEnded        State = "ended"
	StateError        State = "error"
	StateDestroyed    State = "destroyed"
)

type iMediaElement interface {
	SetSource(url string)
	Load()
	Play() error
	Pause()
	Seek(seconds float64)
	CurrentTime() float64
	Duration() float64
}

type iStreamSession interface {
	LoadSource(url string)
	StartLoad()
	RecoverMediaError()
	DetachMedia()
	Destroy()
}

type iStreamFactory interface {
	Supported() bool
	// NewSession creates a streaming session attached to the media element;
	// onError receives every error the session raises.
	NewSession(media iMediaElement, onError func(StreamError)) iStreamSession
}

type iFrameRenderer interface {
	Render(url string)
	Clear()
}

type iPlayerUI interface {
	Destroy()
}

type iProgressStore interface {
	Get(ctx context.Context, episodeID string) (domain.WatchProgress, bool, error)
	Save(ctx context.Context, progress domain.WatchProgress) error
}

type Config struct {
	Media    iMediaElement
	Streams  iStreamFactory
	Frame    iFrameRenderer
	UI       iPlayerUI
	Progress iProgressStore
	Logger   *slog.Logger
	// PersistInterval throttles progress writes while playing.
	PersistInterval time.Duration
	// ResumeThreshold is the minimum saved position worth seeking back to.
	ResumeThreshold float64
}

const (
	defaultPersistInterval = 5 * time.Second
	defaultResumeThreshold = 10.0
)

// Engine drives one media surface through the playback state machine. It is
// safe for use from the orchestrator's timer goroutines.
type Engine struct {
	mu sync.Mutex

	media    iMediaElement
	streams  iStreamFactory
	frame    iFrameRenderer
	ui       iPlayerUI
	progress iProgressStore
	logger   *slog.Logger

	persistInterval time.Duration
	resumeThreshold float64
	now             func() time.Time

	state     State
	mode      SourceMode
	episodeID string
	sourceURL string

	session        iStreamSession
	resumed        bool
	mediaRecovered bool
	lastPersist    time.Time
	lastErr        *PlaybackError
	streamErrs     []StreamError
}

func NewEngine(cfg *Config) *Engine {
	e := Engine{
		media:           cfg.Media,
		streams:         cfg.Streams,
		frame:           cfg.Frame,
		ui:              cfg.UI,
		progress:        cfg.Progress,
		logger:          cfg.Logger,
		persistInterval: cfg.PersistInterval,
		resumeThreshold: cfg.ResumeThreshold,
		now:             time.Now,
		state:           StateIdle,
	}

	if e.logger == nil {
		e.logger = slog.Default()
	}
	if e.persistInterval <= 0 {
		e.persistInterval = defaultPersistInterval
	}
	if e.resumeThreshold <= 0 {
		e.resumeThreshold = defaultResumeThreshold
	}

	return &e
}

// Load replaces the current source. Re-entry with the same episode goes
// through the full teardown as well, so a half-dead session can always be
// recovered by loading again.
func (e *Engine) Load(ctx context.Context, episodeID, url string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state == StateDestroyed {
		return ErrDestroyed
	}
	if url == "" {
		return ErrEmptySource
	}

	e.teardown()

	e.state = StateInitializing
	e.episodeID = episodeID
	e.sourceURL = url
	e.resumed = false
	e.mediaRecovered = false
	e.lastErr = nil
	e.streamErrs = nil

	e.mode = Classify(url, e.streams != nil && e.streams.Supported())
	e.logger.DebugContext(ctx, "loading source", "episode_id", episodeID, "mode", string(e.mode))

	switch e.mode {
	case ModeEmbeddedPage:
		// sandboxed frame only; all further playback logic is skipped.
		e.frame.Render(url)
	case ModeAdaptiveStreaming:
		e.session = e.streams.NewSession(e.media, e.onStreamError)
		e.session.LoadSource(url)
		e.session.StartLoad()
	case ModeDirectSource:
		e.media.SetSource(url)
		e.media.Load()
	}

	e.state = StateReady

	return nil
}

// teardown order is load-bearing: the streaming session goes first so it can
// never write into a media element that has already been reassigned.
func (e *Engine) teardown() {
	if e.session != nil {
		e.session.Destroy()
		e.session = nil
	}
	if e.ui != nil {
		e.ui.Destroy()
	}
	if e.frame != nil {
		e.frame.Clear()
	}
	e.media.SetSource("about:blank")
	e.media.Load()
}

// OnMetadataReady restores saved progress, seeking at most once per loaded
// source no matter how many times the signal fires.
func (e *Engine) OnMetadataReady(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.mode == ModeEmbeddedPage || e.resumed || e.progress == nil {
		return nil
	}
	e.resumed = true

	saved, ok, err := e.progress.Get(ctx, e.episodeID)
	if err != nil {
		return fmt.Errorf("failed to get saved progress: %w", err)
	}

	if ok && !saved.Completed && saved.CurrentTime > e.resumeThreshold {
		e.media.Seek(saved.CurrentTime)
	}

	return nil
}

func (e *Engine) Play(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state == StateDestroyed || e.mode == ModeEmbeddedPage {
		return nil
	}

	if err := e.media.Play(); err != nil {
		return fmt.Errorf("failed to play: %w", err)
	}

	e.state = StatePlaying

	return nil
}

func (e *Engine) Pause(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state != StatePlaying {
		return nil
	}

	e.media.Pause()
	e.state = StatePaused

	return e.persist(ctx, e.media.CurrentTime(), e.media.Duration(), false, true)
}

// OnTimeUpdate persists progress at most once per persist interval of
// playback.
func (e *Engine) OnTimeUpdate(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state != StatePlaying {
		return nil
	}

	return e.persist(ctx, e.media.CurrentTime(), e.media.Duration(), false, false)
}

func (e *Engine) OnEnded(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state == StateDestroyed {
		return nil
	}

	e.state = StateEnded

	// force current time to duration so the episode counts as completed.
	duration := e.media.Duration()

	return e.persist(ctx, duration, duration, true, true)
}

func (e *Engine) persist(ctx context.Context, currentTime, duration float64, completed, force bool) error {
	if e.progress == nil || e.episodeID == "" {
		return nil
	}

	now := e.now()
	if !force && now.Sub(e.lastPersist) < e.persistInterval {
		return nil
	}
	e.lastPersist = now

	if err := e.progress.Save(ctx, domain.WatchProgress{
		EpisodeID:   e.episodeID,
		CurrentTime: currentTime,
		Duration:    duration,
		Completed:   completed,
		UpdatedAt:   now.UnixMilli(),
	}); err != nil {
		return fmt.Errorf("failed to save progress: %w", err)
	}

	return nil
}

// onStreamError implements the recovery ladder for adaptive streaming:
// network errors resume loading in place, a media error gets one in-place
// recovery attempt, anything else degrades to a plain direct source.
func (e *Engine) onStreamError(serr StreamError) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.session == nil {
		return
	}

	if !serr.Fatal {
		e.streamErrs = append(e.streamErrs, serr)
		return
	}

	switch {
	case serr.Kind == ErrorKindNetwork:
		e.session.StartLoad()
	case serr.Kind == ErrorKindMedia && !e.mediaRecovered:
		e.mediaRecovered = true
		e.session.RecoverMediaError()
	default:
		e.session.DetachMedia()
		e.session.Destroy()
		e.session = nil

		e.lastErr = &PlaybackError{
			Source:   e.sourceURL,
			Message:  serr.Details,
			Guidance: "adaptive streaming failed; retrying with direct playback",
		}
		e.state = StateError

		// degrade: raw URL straight to the media element, so playback may
		// still partially work without adaptive bitrate.
		e.mode = ModeDirectSource
		e.media.SetSource(e.sourceURL)
		e.media.Load()
	}
}

// Destroy is the terminal teardown; the engine cannot be reused afterwards.
func (e *Engine) Destroy() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state == StateDestroyed {
		return
	}

	e.teardown()
	e.state = StateDestroyed
}

func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.state
}

func (e *Engine) Mode() SourceMode {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.mode
}

func (e *Engine) LastError() *PlaybackError {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.lastErr
}

// StreamErrors returns recorded non-fatal streaming errors.
func (e *Engine) StreamErrors() []StreamError {
	e.mu.Lock()
	defer e.mu.Unlock()

	return append([]StreamError(nil), e.streamErrs...)
}

// WatchStatus derives the display status for an episode from saved progress.
func (e *Engine) WatchStatus(ctx context.Context, episodeID string) (domain.WatchStatus, error) {
	if e.progress == nil {
		return domain.StatusNotStarted, nil
	}

	saved, ok, err := e.progress.Get(ctx, episodeID)
	if err != nil {
		return domain.StatusNotStarted, fmt.Errorf("failed to get saved progress: %w", err)
	}
	if !ok {
		return domain.StatusNotStarted, nil
	}

	return saved.Status(), nil
}

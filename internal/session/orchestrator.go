package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/selfcinema/server/internal/catalog"
	"github.com/selfcinema/server/internal/domain"
	"github.com/selfcinema/server/internal/extension"
)

var (
	ErrEmptyContent   = errors.New("message content is empty")
	ErrAlreadyStarted = errors.New("session already started")
	ErrUnknownEpisode = errors.New("episode not in bundle")
)

type iRelayClient interface {
	PostMessage(ctx context.Context, roomID string, msg domain.ChatMessage) (PostMessageResult, error)
	GetMessages(ctx context.Context, roomID string, since int64) ([]domain.ChatMessage, error)
	GetPlayback(ctx context.Context, roomID string, version int64, currentURL string) (*PlaybackResult, error)
	SetPlayback(ctx context.Context, roomID, url, hostToken string) (SetPlaybackResult, error)
}

type iPlaybackEngine interface {
	Load(ctx context.Context, episodeID, url string) error
}

type Config struct {
	RoomID      string
	RoomSecret  string
	DisplayName string
	IsHost      bool

	API    iRelayClient
	Engine iPlaybackEngine
	Bundle *catalog.WatchBundle
	// Extension is optional; a session works without the co-viewing
	// extension, it just can't drive the extension room.
	Extension *extension.Handle
	Logger    *slog.Logger

	// All intervals are fixed: no backoff, so convergence latency stays
	// bounded at roughly one interval plus one round trip.
	ChatPollInterval     time.Duration
	HeartbeatInterval    time.Duration
	PlaybackPollInterval time.Duration
}

const (
	defaultChatPollInterval     = 2500 * time.Millisecond
	defaultHeartbeatInterval    = 20 * time.Second
	defaultPlaybackPollInterval = 3 * time.Second
)

// Session wires the playback engine, the relay client and the extension
// capability together for one viewing session. All timers stop before the
// next session may start, so a stale timer can never write into a new room.
type Session struct {
	roomID      string
	roomSecret  string
	displayName string
	isHost      bool

	api       iRelayClient
	engine    iPlaybackEngine
	bundle    *catalog.WatchBundle
	extension *extension.Handle
	logger    *slog.Logger

	chatPollInterval     time.Duration
	heartbeatInterval    time.Duration
	playbackPollInterval time.Duration

	mu        sync.Mutex
	started   bool
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	cursor    int64
	seen      map[string]struct{}
	messages  []domain.ChatMessage
	connected bool

	knownVersion   int64
	currentURL     string
	currentEpisode string
	hostToken      string
}

func New(cfg *Config) *Session {
	s := Session{
		roomID:               cfg.RoomID,
		roomSecret:           cfg.RoomSecret,
		displayName:          cfg.DisplayName,
		isHost:               cfg.IsHost,
		api:                  cfg.API,
		engine:               cfg.Engine,
		bundle:               cfg.Bundle,
		extension:            cfg.Extension,
		logger:               cfg.Logger,
		chatPollInterval:     cfg.ChatPollInterval,
		heartbeatInterval:    cfg.HeartbeatInterval,
		playbackPollInterval: cfg.PlaybackPollInterval,
		seen:                 make(map[string]struct{}),
		connected:            true,
	}

	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.chatPollInterval <= 0 {
		s.chatPollInterval = defaultChatPollInterval
	}
	if s.heartbeatInterval <= 0 {
		s.heartbeatInterval = defaultHeartbeatInterval
	}
	if s.playbackPollInterval <= 0 {
		s.playbackPollInterval = defaultPlaybackPollInterval
	}

	return &s
}

// Start launches the session's timers: chat poll, presence heartbeat and,
// for followers, the playback poll.
func (s *Session) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return ErrAlreadyStarted
	}
	s.started = true

	ctx, s.cancel = context.WithCancel(ctx)
	s.mu.Unlock()

	s.runTicker(ctx, "chat-poll", s.chatPollInterval, s.pollChatOnce)
	s.runTicker(ctx, "heartbeat", s.heartbeatInterval, s.heartbeatOnce)
	if !s.isHost {
		s.runTicker(ctx, "playback-poll", s.playbackPollInterval, s.pollPlaybackOnce)
	}

	if s.extension != nil {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.establishExtensionRoom(ctx)
		}()
	}

	// announce presence right away instead of waiting a full heartbeat.
	s.heartbeatOnce(ctx)

	return nil
}

// establishExtensionRoom creates or joins the extension-side room once the
// capability resolves. The session runs fine without it.
func (s *Session) establishExtensionRoom(ctx context.Context) {
	cmds, err := s.extension.Await(ctx)
	if err != nil {
		s.logger.DebugContext(ctx, "extension not available", "err", err)
		return
	}

	cmds.ApplySettings(extension.Settings{MinimizeUI: true})

	if s.isHost {
		err = cmds.CreateRoom(ctx, s.roomID, s.roomSecret)
	} else {
		err = cmds.JoinRoom(ctx, s.roomID, s.roomSecret)
	}
	if err != nil {
		s.logger.DebugContext(ctx, "extension room setup failed", "err", err)
	}
}

// Stop cancels all timers and waits for their loops to exit. It is safe to
// call more than once.
func (s *Session) Stop() {
	s.mu.Lock()
	cancel := s.cancel
	s.cancel = nil
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	s.wg.Wait()
}

// runTicker starts a named, cancellable repeating task. Each tick runs the
// task once; a failed run just waits for the next tick.
func (s *Session) runTicker(ctx context.Context, name string, interval time.Duration, task func(ctx context.Context)) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				s.logger.DebugContext(ctx, "ticker stopped", "name", name)
				return
			case <-ticker.C:
				task(ctx)
			}
		}
	}()
}

// SendChat posts a chat message keyed by a fresh id. The message shows up in
// the local list through the normal poll path, deduplicated by id.
func (s *Session) SendChat(ctx context.Context, content string) error {
	if content == "" {
		return ErrEmptyContent
	}

	_, err := s.api.PostMessage(ctx, s.roomID, domain.ChatMessage{
		ID:        uuid.NewString(),
		Sender:    s.displayName,
		Content:   content,
		Timestamp: time.Now().UnixMilli(),
		Kind:      domain.KindChat,
	})
	if err != nil {
		s.setConnected(false)
		return fmt.Errorf("failed to post message: %w", err)
	}

	s.setConnected(true)

	return nil
}

// SelectEpisode is the host path: load the episode locally, push the new
// descriptor, and tell the extension room about it.
func (s *Session) SelectEpisode(ctx context.Context, episodeID string) error {
	ep, ok := s.bundle.EpisodeByID(episodeID)
	if !ok {
		return ErrUnknownEpisode
	}

	if err := s.engine.Load(ctx, ep.ID, ep.SourceURL); err != nil {
		return fmt.Errorf("failed to load episode: %w", err)
	}

	s.mu.Lock()
	s.currentEpisode = ep.ID
	s.currentURL = ep.SourceURL
	hostToken := s.hostToken
	s.mu.Unlock()

	resp, err := s.api.SetPlayback(ctx, s.roomID, ep.SourceURL, hostToken)
	if err != nil {
		s.setConnected(false)
		return fmt.Errorf("failed to set playback: %w", err)
	}
	s.setConnected(true)

	s.mu.Lock()
	s.knownVersion = resp.Version
	if resp.HostToken != "" {
		s.hostToken = resp.HostToken
	}
	s.mu.Unlock()

	s.notifyExtension(ctx, ep.SourceURL)

	return nil
}

// notifyExtension forwards the room update when the capability is ready.
// Extension failures never affect the session.
func (s *Session) notifyExtension(ctx context.Context, url string) {
	if s.extension == nil {
		return
	}

	cmds, err := s.extension.Await(ctx)
	if err != nil {
		s.logger.DebugContext(ctx, "extension not available", "err", err)
		return
	}

	if err := cmds.UpdateRoom(ctx, url); err != nil {
		s.logger.DebugContext(ctx, "extension room update failed", "err", err)
	}
}

func (s *Session) pollChatOnce(ctx context.Context) {
	s.mu.Lock()
	cursor := s.cursor
	s.mu.Unlock()

	messages, err := s.api.GetMessages(ctx, s.roomID, cursor)
	if err != nil {
		s.setConnected(false)
		return
	}
	s.setConnected(true)

	if len(messages) == 0 {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, msg := range messages {
		if msg.Timestamp > s.cursor {
			s.cursor = msg.Timestamp
		}

		// cursors can tie on timestamp resolution, so dedup by id as well.
		if _, ok := s.seen[msg.ID]; ok {
			continue
		}
		s.seen[msg.ID] = struct{}{}

		if msg.IsDisplayable() {
			s.messages = append(s.messages, msg)
		}
	}
}

func (s *Session) heartbeatOnce(ctx context.Context) {
	_, err := s.api.PostMessage(ctx, s.roomID, domain.ChatMessage{
		ID:        uuid.NewString(),
		Sender:    s.displayName,
		Timestamp: time.Now().UnixMilli(),
		Kind:      domain.KindPresence,
	})
	if err != nil {
		s.setConnected(false)
		return
	}
	s.setConnected(true)
}

func (s *Session) pollPlaybackOnce(ctx context.Context) {
	s.mu.Lock()
	version := s.knownVersion
	currentURL := s.currentURL
	s.mu.Unlock()

	result, err := s.api.GetPlayback(ctx, s.roomID, version, currentURL)
	if err != nil {
		s.setConnected(false)
		return
	}
	s.setConnected(true)

	if result == nil {
		return
	}

	s.mu.Lock()
	changed := result.URL != s.currentURL
	if !changed {
		s.knownVersion = result.Version
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()

	episodeID := ""
	if s.bundle != nil {
		if ep, ok := s.bundle.EpisodeBySourceURL(result.URL); ok {
			episodeID = ep.ID
		}
	}

	// the version is committed only after the load lands, so a failed load
	// is retried on the next tick instead of waiting for another bump.
	if err := s.engine.Load(ctx, episodeID, result.URL); err != nil {
		s.logger.InfoContext(ctx, "failed to load synced source", "err", err)
		return
	}

	s.mu.Lock()
	s.knownVersion = result.Version
	s.currentURL = result.URL
	s.currentEpisode = episodeID
	s.mu.Unlock()
}

func (s *Session) setConnected(connected bool) {
	s.mu.Lock()
	s.connected = connected
	s.mu.Unlock()
}

// Connected backs the non-blocking connectivity badge.
func (s *Session) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.connected
}

// Messages returns the displayed chat list: ingestion order, presence
// excluded, no duplicates.
func (s *Session) Messages() []domain.ChatMessage {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]domain.ChatMessage(nil), s.messages...)
}

func (s *Session) CurrentEpisode() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.currentEpisode
}

func (s *Session) KnownVersion() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.knownVersion
}

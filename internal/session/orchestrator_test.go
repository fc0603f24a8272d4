package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/selfcinema/server/internal/catalog"
	"github.com/selfcinema/server/internal/domain"
	"github.com/selfcinema/server/internal/extension"
)

// fakeRelay replays the relay contract in memory: ingestion timestamps are
// monotonic, ids deduplicate, and the playback poll answers with nil when
// nothing changed.
type fakeRelay struct {
	mu       sync.Mutex
	lastTs   int64
	ids      map[string]struct{}
	messages []domain.ChatMessage

	playback     *PlaybackResult
	versionSeq   int64
	hostToken    string
	presenceHits int
}

func newFakeRelay() *fakeRelay {
	return &fakeRelay{ids: make(map[string]struct{})}
}

func (f *fakeRelay) PostMessage(_ context.Context, _ string, msg domain.ChatMessage) (PostMessageResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.ids[msg.ID]; ok {
		return PostMessageResult{Duplicate: true}, nil
	}
	f.ids[msg.ID] = struct{}{}

	ts := time.Now().UnixMilli()
	if ts <= f.lastTs {
		ts = f.lastTs + 1
	}
	f.lastTs = ts

	msg.Timestamp = ts
	f.messages = append(f.messages, msg)
	if msg.Kind == domain.KindPresence {
		f.presenceHits++
	}

	return PostMessageResult{Timestamp: ts}, nil
}

func (f *fakeRelay) GetMessages(_ context.Context, _ string, since int64) ([]domain.ChatMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []domain.ChatMessage
	for _, msg := range f.messages {
		if msg.Timestamp > since {
			out = append(out, msg)
		}
	}

	return out, nil
}

func (f *fakeRelay) GetPlayback(_ context.Context, _ string, version int64, _ string) (*PlaybackResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.playback == nil || f.playback.Version == version {
		return nil, nil
	}
	result := *f.playback

	return &result, nil
}

func (f *fakeRelay) SetPlayback(_ context.Context, _, url, _ string) (SetPlaybackResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.versionSeq++
	f.playback = &PlaybackResult{URL: url, Version: f.versionSeq}

	result := SetPlaybackResult{Version: f.versionSeq}
	if f.versionSeq == 1 {
		f.hostToken = "token-1"
		result.HostToken = f.hostToken
	}

	return result, nil
}

type fakeEngine struct {
	mu       sync.Mutex
	failures int
	loaded   []string
}

func (e *fakeEngine) Load(_ context.Context, episodeID, url string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.failures > 0 {
		e.failures--
		return errors.New("media element rejected the source")
	}

	e.loaded = append(e.loaded, episodeID+"|"+url)

	return nil
}

func (e *fakeEngine) loads() []string {
	e.mu.Lock()
	defer e.mu.Unlock()

	return append([]string(nil), e.loaded...)
}

func testBundle() *catalog.WatchBundle {
	return &catalog.WatchBundle{
		Series: catalog.Series{ID: "s1", Title: "Series One"},
		Episodes: []catalog.Episode{
			{ID: "ep1", Number: 1, SourceURL: "https://cdn.example/ep1/index.m3u8"},
			{ID: "ep2", Number: 2, SourceURL: "https://cdn.example/ep2/index.m3u8"},
		},
	}
}

func newTestSession(relay *fakeRelay, engine *fakeEngine, isHost bool) *Session {
	return New(&Config{
		RoomID:      "r1",
		DisplayName: "alice",
		IsHost:      isHost,
		API:         relay,
		Engine:      engine,
		Bundle:      testBundle(),
		// tight intervals keep the timer tests fast
		ChatPollInterval:     10 * time.Millisecond,
		HeartbeatInterval:    10 * time.Millisecond,
		PlaybackPollInterval: 10 * time.Millisecond,
	})
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()

	deadline := time.After(2 * time.Second)
	for {
		if cond() {
			return
		}
		select {
		case <-deadline:
			t.Fatal("condition not met in time")
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func TestStartIsSingleShot(t *testing.T) {
	s := newTestSession(newFakeRelay(), &fakeEngine{}, false)
	defer s.Stop()

	require.NoError(t, s.Start(context.Background()))
	assert.ErrorIs(t, s.Start(context.Background()), ErrAlreadyStarted)
}

func TestChatPollDeliversOnce(t *testing.T) {
	relay := newFakeRelay()
	s := newTestSession(relay, &fakeEngine{}, false)
	defer s.Stop()

	require.NoError(t, s.Start(context.Background()))
	require.NoError(t, s.SendChat(context.Background(), "hello"))

	waitFor(t, func() bool { return len(s.Messages()) == 1 })

	// several more poll cycles must not duplicate the message
	time.Sleep(50 * time.Millisecond)
	messages := s.Messages()
	require.Len(t, messages, 1)
	assert.Equal(t, "hello", messages[0].Content)
	assert.Equal(t, "alice", messages[0].Sender)
}

func TestChatPollHidesPresence(t *testing.T) {
	relay := newFakeRelay()
	s := newTestSession(relay, &fakeEngine{}, false)
	defer s.Stop()

	require.NoError(t, s.Start(context.Background()))

	// wait until at least one heartbeat has been ingested and polled back
	waitFor(t, func() bool {
		relay.mu.Lock()
		defer relay.mu.Unlock()
		return relay.presenceHits > 0
	})
	require.NoError(t, s.SendChat(context.Background(), "visible"))
	waitFor(t, func() bool { return len(s.Messages()) == 1 })

	for _, msg := range s.Messages() {
		assert.NotEqual(t, domain.KindPresence, msg.Kind)
	}
}

func TestHeartbeatStartsImmediately(t *testing.T) {
	relay := newFakeRelay()
	s := newTestSession(relay, &fakeEngine{}, false)
	defer s.Stop()

	require.NoError(t, s.Start(context.Background()))

	relay.mu.Lock()
	hits := relay.presenceHits
	relay.mu.Unlock()
	assert.Positive(t, hits, "presence must be announced at start, not a full interval later")
}

func TestHostSelectEpisode(t *testing.T) {
	relay := newFakeRelay()
	engine := &fakeEngine{}
	s := newTestSession(relay, engine, true)

	err := s.SelectEpisode(context.Background(), "ep1")
	require.NoError(t, err)

	assert.Equal(t, []string{"ep1|https://cdn.example/ep1/index.m3u8"}, engine.loads())
	assert.Equal(t, "ep1", s.CurrentEpisode())
	assert.Equal(t, int64(1), s.KnownVersion())

	// the minted token authorizes the next switch
	require.NoError(t, s.SelectEpisode(context.Background(), "ep2"))
	assert.Equal(t, int64(2), s.KnownVersion())
}

func TestSelectUnknownEpisode(t *testing.T) {
	s := newTestSession(newFakeRelay(), &fakeEngine{}, true)

	err := s.SelectEpisode(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrUnknownEpisode)
}

func TestFollowerConvergesOnHostSwitch(t *testing.T) {
	relay := newFakeRelay()
	engine := &fakeEngine{}
	s := newTestSession(relay, engine, false)
	defer s.Stop()

	require.NoError(t, s.Start(context.Background()))

	// the host publishes ep2; the follower's playback poll must pick it up
	// and resolve the episode through the bundle
	_, err := relay.SetPlayback(context.Background(), "r1", "https://cdn.example/ep2/index.m3u8", "")
	require.NoError(t, err)

	waitFor(t, func() bool { return s.CurrentEpisode() == "ep2" })
	assert.Equal(t, []string{"ep2|https://cdn.example/ep2/index.m3u8"}, engine.loads())
	assert.Equal(t, int64(1), s.KnownVersion())

	// no change afterwards: the engine is not reloaded
	time.Sleep(50 * time.Millisecond)
	assert.Len(t, engine.loads(), 1)
}

func TestFollowerRetriesFailedLoad(t *testing.T) {
	relay := newFakeRelay()
	engine := &fakeEngine{failures: 1}
	s := newTestSession(relay, engine, false)
	defer s.Stop()

	require.NoError(t, s.Start(context.Background()))

	_, err := relay.SetPlayback(context.Background(), "r1", "https://cdn.example/ep2/index.m3u8", "")
	require.NoError(t, err)

	// the first load attempt fails; the version must not be committed, so
	// the next tick retries the same descriptor without a new bump
	waitFor(t, func() bool { return s.CurrentEpisode() == "ep2" })
	assert.Equal(t, int64(1), s.KnownVersion())
	assert.Equal(t, []string{"ep2|https://cdn.example/ep2/index.m3u8"}, engine.loads())
}

func TestStopCancelsTimers(t *testing.T) {
	relay := newFakeRelay()
	s := newTestSession(relay, &fakeEngine{}, false)

	require.NoError(t, s.Start(context.Background()))
	s.Stop()

	relay.mu.Lock()
	before := len(relay.ids)
	relay.mu.Unlock()

	time.Sleep(50 * time.Millisecond)

	relay.mu.Lock()
	after := len(relay.ids)
	relay.mu.Unlock()
	assert.Equal(t, before, after, "no timer may fire after Stop returns")

	// Stop is idempotent
	s.Stop()
}

type fakeExtCommands struct {
	mu       sync.Mutex
	created  []string
	joined   []string
	updated  []string
	settings []extension.Settings
}

func (c *fakeExtCommands) CreateRoom(_ context.Context, name, _ string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.created = append(c.created, name)

	return nil
}

func (c *fakeExtCommands) JoinRoom(_ context.Context, name, _ string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.joined = append(c.joined, name)

	return nil
}

func (c *fakeExtCommands) UpdateRoom(_ context.Context, url string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.updated = append(c.updated, url)

	return nil
}

func (c *fakeExtCommands) ApplySettings(settings extension.Settings) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.settings = append(c.settings, settings)
}

type readyProber struct {
	cmds extension.RoomCommands
}

func (p readyProber) Probe(context.Context) (extension.RoomCommands, error) {
	return p.cmds, nil
}

func TestExtensionRoomLifecycle(t *testing.T) {
	relay := newFakeRelay()
	engine := &fakeEngine{}
	cmds := &fakeExtCommands{}
	handle := extension.NewHandle(readyProber{cmds: cmds}, &extension.Config{
		ProbeInterval: time.Millisecond,
		ProbeAttempts: 3,
	})

	s := New(&Config{
		RoomID:               "r1",
		RoomSecret:           "secret",
		DisplayName:          "alice",
		IsHost:               true,
		API:                  relay,
		Engine:               engine,
		Bundle:               testBundle(),
		Extension:            handle,
		ChatPollInterval:     10 * time.Millisecond,
		HeartbeatInterval:    10 * time.Millisecond,
		PlaybackPollInterval: 10 * time.Millisecond,
	})
	defer s.Stop()

	require.NoError(t, s.Start(context.Background()))

	waitFor(t, func() bool {
		cmds.mu.Lock()
		defer cmds.mu.Unlock()
		return len(cmds.created) == 1
	})
	cmds.mu.Lock()
	assert.Equal(t, []string{"r1"}, cmds.created)
	assert.Empty(t, cmds.joined, "the host creates, never joins")
	require.Len(t, cmds.settings, 1)
	assert.True(t, cmds.settings[0].MinimizeUI)
	cmds.mu.Unlock()

	// an episode switch reaches the extension room
	require.NoError(t, s.SelectEpisode(context.Background(), "ep1"))
	cmds.mu.Lock()
	assert.Equal(t, []string{"https://cdn.example/ep1/index.m3u8"}, cmds.updated)
	cmds.mu.Unlock()
}

func TestSendChatRejectsEmpty(t *testing.T) {
	s := newTestSession(newFakeRelay(), &fakeEngine{}, false)

	err := s.SendChat(context.Background(), "")
	assert.ErrorIs(t, err, ErrEmptyContent)
}

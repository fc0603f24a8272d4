package room

import "github.com/selfcinema/server/internal/domain"

type EnsureRoomParams struct {
	RoomID    string
	HostName  string
	CreatedAt int64
}

type SetPlaybackParams struct {
	RoomID    string
	URL       string
	UpdatedAt int64
}

type Playback struct {
	URL       string `redis:"url"`
	Version   int64  `redis:"version"`
	UpdatedAt int64  `redis:"updated_at"`
}

type AppendMessageParams struct {
	RoomID  string
	Message domain.ChatMessage
	Now     int64
}

type GetMessagesParams struct {
	RoomID string
	Since  int64
	Limit  int64
}

type RefreshPresenceParams struct {
	RoomID   string
	Sender   string
	LastSeen int64
}

type GetOnlineSendersParams struct {
	RoomID    string
	OlderThan int64
}

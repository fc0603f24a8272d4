package room

import (
	"context"
	"errors"
	"time"

	"github.com/selfcinema/server/internal/domain"
	"github.com/selfcinema/server/internal/repository/room"
	"github.com/selfcinema/server/pkg/randstr"
)

var (
	ErrPermissionDenied = errors.New("permission denied")
	ErrEmptyURL         = errors.New("url is empty")
	ErrInvalidMessage   = errors.New("invalid message")
)

const hostTokenLength = 32

type iRoomRepo interface {
	EnsureRoom(context.Context, *room.EnsureRoomParams) error
	SetPlayback(context.Context, *room.SetPlaybackParams) (int64, error)
	GetPlayback(context.Context, string) (room.Playback, error)
	SetHostTokenNX(ctx context.Context, roomID, token string) (bool, error)
	GetHostToken(ctx context.Context, roomID string) (string, error)
	AppendMessage(context.Context, *room.AppendMessageParams) (int64, error)
	GetMessagesAfter(context.Context, *room.GetMessagesParams) ([]domain.ChatMessage, error)
	RefreshPresence(context.Context, *room.RefreshPresenceParams) error
	GetOnlineSenders(context.Context, *room.GetOnlineSendersParams) ([]string, error)
}

type iGenerator interface {
	GenerateRandomString(length int) string
}

type Config struct {
	// PresenceWindow is how long a member stays in the online set after its
	// last heartbeat, roughly 2-3x the client heartbeat period.
	PresenceWindow time.Duration
	// MessagesLimit bounds a single GetMessages page.
	MessagesLimit int64
}

type service struct {
	roomRepo       iRoomRepo
	generator      iGenerator
	presenceWindow time.Duration
	messagesLimit  int64
	now            func() time.Time
}

func NewService(roomRepo iRoomRepo, cfg *Config) *service {
	s := service{
		roomRepo:       roomRepo,
		presenceWindow: cfg.PresenceWindow,
		messagesLimit:  cfg.MessagesLimit,
		now:            time.Now,
	}

	letterBytes := []byte("abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789")
	s.generator = randstr.New(letterBytes)

	return &s
}

package room

import (
	"context"
	"errors"
	"fmt"

	"github.com/selfcinema/server/internal/domain"
	"github.com/selfcinema/server/internal/metrics"
	"github.com/selfcinema/server/internal/repository/room"
)

type PostMessageParams struct {
	RoomID  string
	Message domain.ChatMessage
}

type PostMessageResponse struct {
	Timestamp int64
	// Duplicate means the id was already ingested. The post is still
	// acknowledged so retries stay harmless.
	Duplicate bool
}

func (s service) PostMessage(ctx context.Context, params *PostMessageParams) (PostMessageResponse, error) {
	msg := params.Message
	if msg.ID == "" || msg.Sender == "" || !msg.Kind.Valid() {
		return PostMessageResponse{}, ErrInvalidMessage
	}
	if msg.Kind == domain.KindChat && msg.Content == "" {
		return PostMessageResponse{}, ErrInvalidMessage
	}

	now := s.now().UnixMilli()

	if err := s.roomRepo.EnsureRoom(ctx, &room.EnsureRoomParams{
		RoomID:    params.RoomID,
		CreatedAt: now,
	}); err != nil {
		return PostMessageResponse{}, fmt.Errorf("failed to ensure room: %w", err)
	}

	ts, err := s.roomRepo.AppendMessage(ctx, &room.AppendMessageParams{
		RoomID:  params.RoomID,
		Message: msg,
		Now:     now,
	})
	if err != nil {
		if errors.Is(err, room.ErrDuplicateMessage) {
			return PostMessageResponse{Duplicate: true}, nil
		}

		return PostMessageResponse{}, fmt.Errorf("failed to append message: %w", err)
	}

	// any ingested message counts as a liveness signal from its sender.
	if err := s.roomRepo.RefreshPresence(ctx, &room.RefreshPresenceParams{
		RoomID:   params.RoomID,
		Sender:   msg.Sender,
		LastSeen: ts,
	}); err != nil {
		return PostMessageResponse{}, fmt.Errorf("failed to refresh presence: %w", err)
	}

	metrics.MessagesTotal.WithLabelValues(string(msg.Kind)).Inc()

	return PostMessageResponse{Timestamp: ts}, nil
}

type GetMessagesParams struct {
	RoomID string
	Since  int64
}

type GetMessagesResponse struct {
	Messages []domain.ChatMessage
}

func (s service) GetMessages(ctx context.Context, params *GetMessagesParams) (GetMessagesResponse, error) {
	messages, err := s.roomRepo.GetMessagesAfter(ctx, &room.GetMessagesParams{
		RoomID: params.RoomID,
		Since:  params.Since,
		Limit:  s.messagesLimit,
	})
	if err != nil {
		return GetMessagesResponse{}, fmt.Errorf("failed to get messages: %w", err)
	}

	return GetMessagesResponse{Messages: messages}, nil
}

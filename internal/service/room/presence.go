package room

import (
	"context"
	"fmt"

	"github.com/selfcinema/server/internal/repository/room"
)

type OnlineMembersParams struct {
	RoomID string
}

type OnlineMembersResponse struct {
	Members []string
}

// OnlineMembers recomputes the online set from presence records, dropping
// anyone whose last signal is older than the presence window.
func (s service) OnlineMembers(ctx context.Context, params *OnlineMembersParams) (OnlineMembersResponse, error) {
	cutoff := s.now().UnixMilli() - s.presenceWindow.Milliseconds()

	senders, err := s.roomRepo.GetOnlineSenders(ctx, &room.GetOnlineSendersParams{
		RoomID:    params.RoomID,
		OlderThan: cutoff,
	})
	if err != nil {
		return OnlineMembersResponse{}, fmt.Errorf("failed to get online senders: %w", err)
	}

	return OnlineMembersResponse{Members: senders}, nil
}

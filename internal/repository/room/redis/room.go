package redis

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/selfcinema/server/internal/repository/room"
)

// EnsureRoom records room metadata on first contact. Rooms are created
// implicitly, so this is a no-op for an already known room.
func (r repo) EnsureRoom(ctx context.Context, params *room.EnsureRoomParams) error {
	roomKey := r.getRoomKey(params.RoomID)

	pipe := r.rc.TxPipeline()
	pipe.HSetNX(ctx, roomKey, "id", params.RoomID)
	if params.HostName != "" {
		pipe.HSetNX(ctx, roomKey, "host_name", params.HostName)
	}
	pipe.HSetNX(ctx, roomKey, "created_at", params.CreatedAt)
	pipe.Expire(ctx, roomKey, r.expireDuration)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to ensure room: %w", err)
	}

	return nil
}

// SetHostTokenNX stores the room's host token if none exists yet and reports
// whether this call won the claim.
func (r repo) SetHostTokenNX(ctx context.Context, roomID, token string) (bool, error) {
	tokenKey := r.getHostTokenKey(roomID)
	claimed, err := r.rc.SetNX(ctx, tokenKey, token, r.expireDuration).Result()
	if err != nil {
		return false, fmt.Errorf("failed to set host token: %w", err)
	}

	return claimed, nil
}

func (r repo) GetHostToken(ctx context.Context, roomID string) (string, error) {
	tokenKey := r.getHostTokenKey(roomID)
	token, err := r.rc.Get(ctx, tokenKey).Result()
	if err != nil {
		if err == redis.Nil {
			return "", room.ErrHostTokenNotFound
		}

		return "", fmt.Errorf("failed to get host token: %w", err)
	}

	r.rc.Expire(ctx, tokenKey, r.expireDuration)

	return token, nil
}

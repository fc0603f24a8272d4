package redis

import (
	"context"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"
	"github.com/selfcinema/server/internal/repository/room"
)

func (r repo) RefreshPresence(ctx context.Context, params *room.RefreshPresenceParams) error {
	presenceKey := r.getPresenceKey(params.RoomID)

	pipe := r.rc.TxPipeline()
	pipe.ZAdd(ctx, presenceKey, redis.Z{Score: float64(params.LastSeen), Member: params.Sender})
	pipe.Expire(ctx, presenceKey, r.expireDuration)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to refresh presence: %w", err)
	}

	return nil
}

// GetOnlineSenders drops presence entries older than the cutoff, then returns
// whoever is left, oldest first.
func (r repo) GetOnlineSenders(ctx context.Context, params *room.GetOnlineSendersParams) ([]string, error) {
	presenceKey := r.getPresenceKey(params.RoomID)

	pipe := r.rc.TxPipeline()
	pipe.ZRemRangeByScore(ctx, presenceKey, "-inf", "("+strconv.FormatInt(params.OlderThan, 10))
	rangeCmd := pipe.ZRange(ctx, presenceKey, 0, -1)
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("failed to get online senders: %w", err)
	}

	return rangeCmd.Val(), nil
}

package redis

import (
	"context"
	"fmt"

	"github.com/selfcinema/server/internal/repository/room"
)

func (r repo) SetPlayback(ctx context.Context, params *room.SetPlaybackParams) (int64, error) {
	playbackKey := r.getPlaybackKey(params.RoomID)
	version, err := r.setPlayback.Run(ctx, r.rc, []string{playbackKey}, params.URL, params.UpdatedAt).Int64()
	if err != nil {
		return 0, fmt.Errorf("failed to set playback: %w", err)
	}

	r.rc.Expire(ctx, playbackKey, r.expireDuration)

	return version, nil
}

func (r repo) GetPlayback(ctx context.Context, roomID string) (room.Playback, error) {
	playbackKey := r.getPlaybackKey(roomID)
	cmd := r.rc.HGetAll(ctx, playbackKey)
	res, err := cmd.Result()
	if err != nil {
		return room.Playback{}, fmt.Errorf("failed to get playback: %w", err)
	}

	if len(res) == 0 {
		return room.Playback{}, room.ErrPlaybackNotFound
	}

	var playback room.Playback
	if err := cmd.Scan(&playback); err != nil {
		return room.Playback{}, fmt.Errorf("failed to scan playback: %w", err)
	}

	r.rc.Expire(ctx, playbackKey, r.expireDuration)

	return playback, nil
}

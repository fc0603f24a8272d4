package room

import (
	"context"
	"errors"
	"fmt"

	"github.com/selfcinema/server/internal/metrics"
	"github.com/selfcinema/server/internal/repository/room"
)

type SetPlaybackParams struct {
	RoomID    string
	URL       string
	HostName  string
	HostToken string
}

type SetPlaybackResponse struct {
	Version int64
	// HostToken is set only when this call created the room: the caller
	// becomes the host and must present the token on later updates.
	HostToken string
}

func (s service) SetPlayback(ctx context.Context, params *SetPlaybackParams) (SetPlaybackResponse, error) {
	if params.URL == "" {
		return SetPlaybackResponse{}, ErrEmptyURL
	}

	now := s.now().UnixMilli()

	var mintedToken string
	token, err := s.roomRepo.GetHostToken(ctx, params.RoomID)
	if err != nil {
		if !errors.Is(err, room.ErrHostTokenNotFound) {
			return SetPlaybackResponse{}, fmt.Errorf("failed to get host token: %w", err)
		}

		minted := s.generator.GenerateRandomString(hostTokenLength)
		claimed, err := s.roomRepo.SetHostTokenNX(ctx, params.RoomID, minted)
		if err != nil {
			return SetPlaybackResponse{}, fmt.Errorf("failed to claim host token: %w", err)
		}

		if claimed {
			mintedToken = minted

			if err := s.roomRepo.EnsureRoom(ctx, &room.EnsureRoomParams{
				RoomID:    params.RoomID,
				HostName:  params.HostName,
				CreatedAt: now,
			}); err != nil {
				return SetPlaybackResponse{}, fmt.Errorf("failed to ensure room: %w", err)
			}
		} else {
			// lost the creation race, fall through to the token check.
			token, err = s.roomRepo.GetHostToken(ctx, params.RoomID)
			if err != nil {
				return SetPlaybackResponse{}, fmt.Errorf("failed to get host token: %w", err)
			}
		}
	}

	if mintedToken == "" && params.HostToken != token {
		return SetPlaybackResponse{}, ErrPermissionDenied
	}

	version, err := s.roomRepo.SetPlayback(ctx, &room.SetPlaybackParams{
		RoomID:    params.RoomID,
		URL:       params.URL,
		UpdatedAt: now,
	})
	if err != nil {
		return SetPlaybackResponse{}, fmt.Errorf("failed to set playback: %w", err)
	}

	metrics.PlaybackUpdatesTotal.Inc()

	return SetPlaybackResponse{
		Version:   version,
		HostToken: mintedToken,
	}, nil
}

type GetPlaybackParams struct {
	RoomID       string
	KnownVersion int64
	KnownURL     string
}

type GetPlaybackResponse struct {
	URL        string
	Version    int64
	SameSource bool
	// NoChange marks the lightweight empty result: nothing to converge to.
	NoChange bool
}

func (s service) GetPlayback(ctx context.Context, params *GetPlaybackParams) (GetPlaybackResponse, error) {
	playback, err := s.roomRepo.GetPlayback(ctx, params.RoomID)
	if err != nil {
		if errors.Is(err, room.ErrPlaybackNotFound) {
			return GetPlaybackResponse{NoChange: true}, nil
		}

		return GetPlaybackResponse{}, fmt.Errorf("failed to get playback: %w", err)
	}

	if playback.Version == params.KnownVersion {
		return GetPlaybackResponse{NoChange: true}, nil
	}

	return GetPlaybackResponse{
		URL:        playback.URL,
		Version:    playback.Version,
		SameSource: playback.URL == params.KnownURL,
	}, nil
}

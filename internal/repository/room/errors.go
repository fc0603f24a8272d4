package room

import "errors"

var (
	ErrPlaybackNotFound  = errors.New("playback not found")
	ErrRoomNotFound      = errors.New("room not found")
	ErrDuplicateMessage  = errors.New("duplicate message")
	ErrHostTokenNotFound = errors.New("host token not found")
)

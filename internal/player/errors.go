package player

import "errors"

var (
	ErrEmptySource = errors.New("source url is empty")
	ErrDestroyed   = errors.New("engine is destroyed")
)

type ErrorKind string

const (
	ErrorKindNetwork ErrorKind = "network"
	ErrorKindMedia   ErrorKind = "media"
	ErrorKindOther   ErrorKind = "other"
)

// StreamError is reported by the adaptive streaming session.
type StreamError struct {
	Kind    ErrorKind
	Fatal   bool
	Details string
}

// PlaybackError is the user-facing error surfaced when recovery is
// exhausted. It must never take the hosting page down with it.
type PlaybackError struct {
	Source   string `json:"source"`
	Message  string `json:"message"`
	Guidance string `json:"guidance"`
}

func (e *PlaybackError) Error() string {
	return e.Message
}

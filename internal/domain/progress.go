package domain

type WatchStatus string

const (
	StatusNotStarted WatchStatus = "not-started"
	StatusWatching   WatchStatus = "watching"
	StatusCompleted  WatchStatus = "completed"
)

// WatchProgress is local to one viewer and never shared with other
// participants.
type WatchProgress struct {
	EpisodeID   string  `json:"episode_id"`
	CurrentTime float64 `json:"current_time"`
	Duration    float64 `json:"duration"`
	Completed   bool    `json:"completed"`
	UpdatedAt   int64   `json:"updated_at"`
}

// completedRatio is the watched fraction at which an episode counts as
// finished, so credit tails don't keep an episode stuck in "watching".
const completedRatio = 0.9

func (p WatchProgress) Status() WatchStatus {
	switch {
	case p.Completed, p.Duration > 0 && p.CurrentTime/p.Duration >= completedRatio:
		return StatusCompleted
	case p.CurrentTime > 0:
		return StatusWatching
	default:
		return StatusNotStarted
	}
}

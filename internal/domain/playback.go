package domain

// PlaybackDescriptor is the authoritative playback source for a room.
// Version starts at 1 on the first accepted update and increases by exactly
// one on every accepted update; an absent room reads as version 0.
type PlaybackDescriptor struct {
	RoomID    string `json:"room_id" redis:"room_id"`
	URL       string `json:"url" redis:"url"`
	Version   int64  `json:"version" redis:"version"`
	UpdatedAt int64  `json:"updated_at" redis:"updated_at"`
}

type Room struct {
	ID        string `json:"id" redis:"id"`
	HostName  string `json:"host_name" redis:"host_name"`
	CreatedAt int64  `json:"created_at" redis:"created_at"`
}

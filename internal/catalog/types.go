package catalog

// Wire types follow the catalog provider's share API. This core only reads
// the bundle; it never mutates catalog data.

type Series struct {
	ID            string   `json:"id"`
	Title         string   `json:"title"`
	EnglishTitle  string   `json:"englishTitle"`
	Description   string   `json:"description"`
	CoverImage    string   `json:"coverImage"`
	TotalEpisodes int      `json:"totalEpisodes"`
	ReleaseYear   int      `json:"releaseYear"`
	Genre         []string `json:"genre"`
}

type Episode struct {
	ID         string `json:"id"`
	Number     int    `json:"episode"`
	Title      string `json:"title"`
	SourceURL  string `json:"videoUrl"`
	Duration   string `json:"duration"`
	Restricted bool   `json:"isVip"`
}

// WatchBundle is the read-only payload resolved from a share token.
type WatchBundle struct {
	Series   Series    `json:"series"`
	Episodes []Episode `json:"episodes"`
}

func (b *WatchBundle) EpisodeByID(id string) (Episode, bool) {
	for _, ep := range b.Episodes {
		if ep.ID == id {
			return ep, true
		}
	}

	return Episode{}, false
}

// EpisodeBySourceURL maps a playback URL back onto the bundle. This is what
// lets a follower auto-select the episode the host switched to.
func (b *WatchBundle) EpisodeBySourceURL(url string) (Episode, bool) {
	for _, ep := range b.Episodes {
		if ep.SourceURL == url {
			return ep, true
		}
	}

	return Episode{}, false
}

func (b *WatchBundle) NextEpisode(current string) (Episode, bool) {
	for i, ep := range b.Episodes {
		if ep.ID == current && i+1 < len(b.Episodes) {
			return b.Episodes[i+1], true
		}
	}

	return Episode{}, false
}

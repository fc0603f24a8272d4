package player

import "strings"

type SourceMode string

const (
	ModeEmbeddedPage      SourceMode = "embedded-page"
	ModeDirectSource      SourceMode = "direct-source"
	ModeAdaptiveStreaming SourceMode = "adaptive-streaming"
)

// embeddedPrefix is the reserved marker forcing a source into a sandboxed
// frame regardless of its path.
const embeddedPrefix = "embed:"

// sharePagePattern matches catalog share pages, which are full pages rather
// than media resources.
const sharePagePattern = "/watch/"

// Classify decides how a source URL gets rendered. Embedded pages never touch
// a media element; segmented manifests use an adaptive streaming session when
// one is available; everything else goes straight to the media element.
func Classify(url string, adaptiveSupported bool) SourceMode {
	trimmed := strings.ToLower(strings.SplitN(url, "?", 2)[0])

	switch {
	case strings.HasPrefix(trimmed, embeddedPrefix),
		strings.Contains(trimmed, sharePagePattern),
		strings.HasSuffix(trimmed, ".html"):
		return ModeEmbeddedPage
	case strings.HasSuffix(trimmed, ".m3u8") && adaptiveSupported:
		return ModeAdaptiveStreaming
	default:
		return ModeDirectSource
	}
}

package comments

import (
	"sort"
	"strings"
)

// DefaultMentionMarkers are the tokens that address the assistant.
var DefaultMentionMarkers = []string{"@bot", "@ai", "@aibot", "@assistant"}

// Detector classifies whether a comment addresses the assistant. Pure text
// matching, no I/O.
type Detector struct {
	markers []string
}

// NewDetector builds a Detector over the given marker tokens; an empty set
// falls back to the defaults. Markers are matched case-insensitively and
// stripped longest-first so that "@aibot" is not consumed as "@ai" + "bot".
func NewDetector(markers []string) *Detector {
	if len(markers) == 0 {
		markers = DefaultMentionMarkers
	}
	lowered := make([]string, 0, len(markers))
	for _, marker := range markers {
		marker = strings.ToLower(strings.TrimSpace(marker))
		if marker != "" {
			lowered = append(lowered, marker)
		}
	}
	sort.Slice(lowered, func(i, j int) bool {
		return len(lowered[i]) > len(lowered[j])
	})
	return &Detector{markers: lowered}
}

// IsMentioned reports whether the text contains any marker token.
func (d *Detector) IsMentioned(text string) bool {
	for _, marker := range d.markers {
		if indexASCIIFold(text, marker) >= 0 {
			return true
		}
	}
	return false
}

// ExtractPrompt removes every marker occurrence and trims the remainder. The
// empty string is a valid prompt.
func (d *Detector) ExtractPrompt(text string) string {
	for _, marker := range d.markers {
		text = removeFold(text, marker)
	}
	return strings.TrimSpace(text)
}

// removeFold strips every occurrence of marker from text, folding ASCII case
// only. Markers are ASCII, so matching on raw bytes keeps offsets valid even
// when the surrounding text holds code points whose Unicode lowercase form
// has a different byte length.
func removeFold(text, marker string) string {
	var builder strings.Builder
	for {
		idx := indexASCIIFold(text, marker)
		if idx < 0 {
			builder.WriteString(text)
			return builder.String()
		}
		builder.WriteString(text[:idx])
		text = text[idx+len(marker):]
	}
}

// indexASCIIFold returns the byte index of the first occurrence of the
// lowercase ASCII marker in text, folding A-Z only, or -1.
func indexASCIIFold(text, marker string) int {
	if len(marker) == 0 {
		return -1
	}
	for i := 0; i+len(marker) <= len(text); i++ {
		if equalASCIIFold(text[i:i+len(marker)], marker) {
			return i
		}
	}
	return -1
}

func equalASCIIFold(candidate, marker string) bool {
	for i := 0; i < len(marker); i++ {
		c := candidate[i]
		if 'A' <= c && c <= 'Z' {
			c += 'a' - 'A'
		}
		if c != marker[i] {
			return false
		}
	}
	return true
}

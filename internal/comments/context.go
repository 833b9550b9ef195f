package comments

import (
	"strings"

	"github.com/postinlab/postin-api/internal/ai"
)

const (
	// DefaultMaxContextComments bounds how much history travels to the generator.
	DefaultMaxContextComments = 5

	notAvailableMarker = "N/A"
	noHistoryMarker    = "Tidak ada komentar sebelumnya"
)

// RecentComment is one prior comment, already joined with its author name.
type RecentComment struct {
	AuthorName string
	Body       string
}

// Assembler renders a post and its recent comments into the textual bundle
// the generator consumes. Pure transformation, no I/O.
type Assembler struct {
	maxComments int
}

// NewAssembler builds an Assembler bounded to the given history size.
func NewAssembler(maxComments int) *Assembler {
	if maxComments <= 0 {
		maxComments = DefaultMaxContextComments
	}
	return &Assembler{maxComments: maxComments}
}

// Assemble produces the prompt context. Recent comments arrive newest-first
// (as fetched) and are rendered oldest-first so the transcript reads in
// chronological order. Missing values become explicit markers, never empty
// strings.
func (a *Assembler) Assemble(postTitle, postContent string, recent []RecentComment) ai.PromptContext {
	if len(recent) > a.maxComments {
		recent = recent[:a.maxComments]
	}

	lines := make([]string, 0, len(recent))
	for i := len(recent) - 1; i >= 0; i-- {
		lines = append(lines, recent[i].AuthorName+": "+recent[i].Body)
	}

	previous := noHistoryMarker
	if len(lines) > 0 {
		previous = strings.Join(lines, "\n")
	}

	return ai.PromptContext{
		PostTitle:        orMarker(postTitle),
		PostContent:      orMarker(postContent),
		PreviousComments: previous,
	}
}

func orMarker(value string) string {
	if strings.TrimSpace(value) == "" {
		return notAvailableMarker
	}
	return value
}

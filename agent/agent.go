package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode"

	"github.com/alibaba/higress/plugins/golang-filter/mcp-server/servers/policyqa/schema"
)

// ErrAnalysis marks a source that produced no usable output because its model
// call, or every one of its chunk calls, failed.
var ErrAnalysis = errors.New("source analysis failed")

// Agent answers a question from one source's private corpus.
//
// Analyze always returns a populated result. A non-nil error means the source
// failed as a whole (corpus unreadable, model call failed); the result then
// carries CanAnswer=false and a description of the failure.
type Agent interface {
	ID() schema.SourceID
	Label() string
	Analyze(ctx context.Context, question string) (schema.SourceResult, error)
}

// Options are the texts shared by every agent.
type Options struct {
	// Sentinel is the exact reply a model gives when it finds nothing.
	Sentinel string
	// NotFound is the result content when nothing relevant was found.
	NotFound string
}

// IsSentinel reports whether a model reply is the "nothing relevant" marker.
// Comparison ignores case, surrounding whitespace and quotes, trailing
// punctuation, and runs of inner whitespace.
func IsSentinel(reply, sentinel string) bool {
	s := normalizeReply(sentinel)
	if s == "" {
		return false
	}
	return strings.EqualFold(normalizeReply(reply), s)
}

func normalizeReply(s string) string {
	s = strings.TrimFunc(s, func(r rune) bool {
		return unicode.IsSpace(r) || unicode.IsPunct(r) || r == '`' || r == '«' || r == '»'
	})
	return strings.Join(strings.Fields(s), " ")
}

func unavailable(id schema.SourceID, label string, err error) (schema.SourceResult, error) {
	return schema.SourceResult{
		Source:    id,
		CanAnswer: false,
		Content:   fmt.Sprintf("%s : document indisponible (%v)", label, err),
	}, err
}

func analysisFailed(id schema.SourceID, label string, err error) (schema.SourceResult, error) {
	return schema.SourceResult{
		Source:    id,
		CanAnswer: false,
		Content:   fmt.Sprintf("%s : erreur lors de l'analyse", label),
	}, fmt.Errorf("%w: %s: %v", ErrAnalysis, id, err)
}

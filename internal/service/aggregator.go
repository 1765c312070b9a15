package service

import (
	"encoding/json"
	"fmt"
	"iter"
	"strings"
	"unicode/utf8"

	"github.com/Strob0t/taskbridge/internal/domain/task"
)

// Aggregator flattens streamed text fragments from a remote agent and pulls
// the one fenced structured block out of the concatenated text.
//
// NOTE: markers are matched as plain text. Narration that happens to
// contain the begin marker literally is taken as the start of the block;
// there is no escaping scheme for the markers.
type Aggregator struct {
	Begin      string
	End        string
	ExcerptLen int
}

// NewAggregator creates an Aggregator for the given fence markers.
func NewAggregator(begin, end string, excerptLen int) *Aggregator {
	return &Aggregator{Begin: begin, End: end, ExcerptLen: excerptLen}
}

// Collect drains fragments in arrival order into one buffer. It stops at
// the first stream error and returns the text gathered so far with it.
func (a *Aggregator) Collect(fragments iter.Seq2[string, error]) (string, error) {
	var buf strings.Builder
	for frag, err := range fragments {
		if err != nil {
			return buf.String(), err
		}
		buf.WriteString(frag)
	}
	return buf.String(), nil
}

// Extract turns the full buffer into a result for taskID. The first begin
// marker and the first end marker after it delimit the block; the trimmed
// interior must decode as JSON.
func (a *Aggregator) Extract(taskID, text string) *task.Result {
	start := strings.Index(text, a.Begin)
	if start < 0 {
		return task.Failed(taskID, task.KindMissingPayload,
			fmt.Sprintf("no fenced block in response: %q", a.excerpt(text)))
	}
	body := text[start+len(a.Begin):]
	end := strings.Index(body, a.End)
	if end < 0 {
		return task.Failed(taskID, task.KindMissingPayload,
			fmt.Sprintf("unterminated fenced block in response: %q", a.excerpt(text)))
	}

	inner := strings.TrimSpace(body[:end])
	if !json.Valid([]byte(inner)) {
		return task.Failed(taskID, task.KindMalformedPayload,
			fmt.Sprintf("fenced block is not valid JSON: %q", a.excerpt(inner)))
	}
	return task.Succeeded(taskID, json.RawMessage(inner))
}

// excerpt bounds s to ExcerptLen runes.
func (a *Aggregator) excerpt(s string) string {
	if a.ExcerptLen <= 0 || utf8.RuneCountInString(s) <= a.ExcerptLen {
		return s
	}
	n := 0
	for i := range s {
		if n == a.ExcerptLen {
			return s[:i] + "..."
		}
		n++
	}
	return s
}

// Package dialogue splits multi-speaker reply text into ordered segments and
// routes them to voices. Both operations are pure functions over their
// arguments; nothing in this package holds state between calls.
package dialogue

import (
	"strings"
)

// Segment is one speaker's contiguous span of text within a reply.
// Sequence is 0-based, strictly increasing, and gapless within one reply.
type Segment struct {
	Speaker  string `json:"speaker"`
	Text     string `json:"text"`
	Sequence int    `json:"sequence"`
}

// markerPrefix opens a speaker marker. The full form is
// "[SPEAKER: <name>]" with the name trimmed of surrounding whitespace.
// The tag is literal and case-sensitive; "[speaker: x]" is plain text.
const markerPrefix = "[SPEAKER:"

// Parse scans text for speaker markers and returns the ordered segments.
//
// The scanner has two states. In the searching state (before any marker)
// text accumulates for the default speaker. After a marker, text accumulates
// for that marker's speaker until the next marker or end of input. A marker
// directly followed by another marker produces no segment, and sequence
// numbers always reflect the emitted order, not the raw marker count.
//
// Text with no marker at all becomes a single segment for defaultSpeaker.
// Empty or whitespace-only input yields no segments. Parse never fails:
// malformed markers (no closing bracket) are treated as ordinary text.
func Parse(text, defaultSpeaker string) []Segment {
	var segments []Segment
	speaker := defaultSpeaker
	var body strings.Builder

	flush := func() {
		trimmed := strings.TrimSpace(body.String())
		body.Reset()
		if trimmed == "" {
			return
		}
		segments = append(segments, Segment{
			Speaker:  speaker,
			Text:     trimmed,
			Sequence: len(segments),
		})
	}

	i := 0
	for i < len(text) {
		name, end, ok := scanMarker(text[i:])
		if !ok {
			body.WriteByte(text[i])
			i++
			continue
		}
		flush()
		speaker = name
		i += end
	}
	flush()

	return segments
}

// scanMarker tries to read a speaker marker at the start of s. It returns
// the trimmed speaker name and the marker's byte length. A prefix without a
// closing bracket is not a marker.
func scanMarker(s string) (name string, length int, ok bool) {
	if !strings.HasPrefix(s, markerPrefix) {
		return "", 0, false
	}
	close := strings.IndexByte(s[len(markerPrefix):], ']')
	if close < 0 {
		return "", 0, false
	}
	name = strings.TrimSpace(s[len(markerPrefix) : len(markerPrefix)+close])
	return name, len(markerPrefix) + close + 1, true
}

// StripMarkers removes every well-formed speaker marker from text, leaving
// the bodies untouched. Joined with the segment bodies, this is the basis of
// the round-trip guarantee: concatenating Parse output in order reproduces
// StripMarkers(text) modulo whitespace.
func StripMarkers(text string) string {
	var out strings.Builder
	i := 0
	for i < len(text) {
		if _, end, ok := scanMarker(text[i:]); ok {
			i += end
			continue
		}
		out.WriteByte(text[i])
		i++
	}
	return out.String()
}

// JoinBodies concatenates segment bodies in order with single spaces,
// the normalized form used by the memory tracker for trigger matching.
func JoinBodies(segments []Segment) string {
	parts := make([]string, 0, len(segments))
	for _, seg := range segments {
		parts = append(parts, seg.Text)
	}
	return strings.Join(parts, " ")
}

package dialogue

// RoutedSegment is a segment bound to a concrete synthesis voice.
// SequenceOrder is the contract the audio player uses for strict sequential
// playback: contiguous from 0, never repeating, never decreasing.
type RoutedSegment struct {
	Speaker       string `json:"speaker"`
	Text          string `json:"text"`
	VoiceID       string `json:"voice_id"`
	SequenceOrder int    `json:"sequence_order"`
}

// Omission records a segment dropped during routing because its speaker had
// no voice in a multi-voice mapping.
type Omission struct {
	Speaker  string `json:"speaker"`
	Sequence int    `json:"sequence"` // sequence of the dropped parse segment
	Reason   string `json:"reason"`
}

// Route maps ordered segments to synthesis requests using a per-session
// voice mapping supplied by the caller for this call only.
//
// A speaker missing from a single-entry mapping falls back to that sole
// voice (single-speaker session assumption). A speaker missing from a
// multi-entry mapping is dropped and recorded: assigning another character's
// voice to their line would be worse than omitting it.
func Route(segments []Segment, mapping map[string]string) ([]RoutedSegment, []Omission) {
	var routed []RoutedSegment
	var omitted []Omission

	var fallback string
	if len(mapping) == 1 {
		for _, v := range mapping {
			fallback = v
		}
	}

	for _, seg := range segments {
		voice, ok := mapping[seg.Speaker]
		if !ok {
			if fallback == "" {
				omitted = append(omitted, Omission{
					Speaker:  seg.Speaker,
					Sequence: seg.Sequence,
					Reason:   "no voice mapped for speaker",
				})
				continue
			}
			voice = fallback
		}
		routed = append(routed, RoutedSegment{
			Speaker:       seg.Speaker,
			Text:          seg.Text,
			VoiceID:       voice,
			SequenceOrder: len(routed),
		})
	}

	return routed, omitted
}

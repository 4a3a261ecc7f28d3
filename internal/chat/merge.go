package chat

// MergeConsecutive collapses runs of consecutive messages from the same
// sender into single entries, joining contents with a newline. Sender
// comparison is exact (case-sensitive). The merged entry keeps the
// metadata of the first message in the run; metadata of the later
// messages is discarded.
//
// The result is never longer than the input and preserves order.
func MergeConsecutive(messages []Message) []Message {
	if len(messages) < 2 {
		return messages
	}

	merged := make([]Message, 0, len(messages))
	for _, msg := range messages {
		if n := len(merged); n > 0 && merged[n-1].Sender == msg.Sender {
			merged[n-1].Content += "\n" + msg.Content
			continue
		}
		merged = append(merged, msg)
	}
	return merged
}

// Stats describes the effect of a merge pass.
type Stats struct {
	OriginalCount int
	MergedCount   int
}

// CompressionRatio returns the relative reduction in entry count as a
// percentage.
func (s Stats) CompressionRatio() float64 {
	if s.OriginalCount == 0 {
		return 0
	}
	return (1 - float64(s.MergedCount)/float64(s.OriginalCount)) * 100
}

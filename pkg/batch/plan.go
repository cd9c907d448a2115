package batch

// Span is one contiguous half-open range [Start, End) over the identifier
// list, with a 1-based sequence number. The spans returned by Plan partition
// the list exactly: no gaps, no overlaps, ordered by sequence.
type Span struct {
	Sequence int
	Start    int
	End      int
}

// Size returns the number of identifiers in the span.
func (s Span) Size() int {
	return s.End - s.Start
}

// Plan partitions total identifiers into spans of at most size each. The
// final span carries the remainder when total is not a multiple of size.
func Plan(total, size int) []Span {
	if total <= 0 || size <= 0 {
		return nil
	}

	count := (total + size - 1) / size
	spans := make([]Span, 0, count)
	for i := 0; i < count; i++ {
		start := i * size
		end := start + size
		if end > total {
			end = total
		}
		spans = append(spans, Span{
			Sequence: i + 1,
			Start:    start,
			End:      end,
		})
	}
	return spans
}

package traceevent

type Span struct {
	Start float64
	End   float64
	Event *Event
}

func (s *Span) Duration() float64 {
	return s.End - s.Start
}

// Wraps reports whether v lies entirely within s.
func (s *Span) Wraps(v *Span) bool {
	return s.Start <= v.Start && v.End <= s.End
}

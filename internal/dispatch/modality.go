package dispatch

// Modality is a presentation channel.
type Modality string

const (
	// Visual drives a screen backend; normal content is feedback display.
	Visual Modality = "visual"
	// Auditory drives a sound backend; normal content is sound playback.
	Auditory Modality = "auditory"
)

// String returns the modality name.
func (m Modality) String() string {
	return string(m)
}

// logsTeardownFailure reports whether a failing backend close is logged.
// The sound system's close failures are worth an operator's attention; a
// screen that fails to close at the end of a session is not.
func (m Modality) logsTeardownFailure() bool {
	return m == Auditory
}

// Valid reports whether m is a known modality.
func (m Modality) Valid() bool {
	return m == Visual || m == Auditory
}

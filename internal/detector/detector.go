package detector

// Detector decides whether a live process is a previous instance of this
// launcher. The PID in the marker may have been recycled by an unrelated
// process, so liveness alone is not proof of identity.
// It must be safe for concurrent use.
type Detector interface {
	// Match returns true if cmdline belongs to a prior instance.
	Match(cmdline string) bool
	// Describe returns a human-readable description of the detection method.
	Describe() string
}

// First returns the first detector that matches cmdline, or nil.
func First(dets []Detector, cmdline string) Detector {
	for _, d := range dets {
		if d != nil && d.Match(cmdline) {
			return d
		}
	}
	return nil
}

package posture

import "fmt"

// State is the discrete posture classification of a frame.
type State int

const (
	Initializing State = iota
	GoodPosture
	BadPosture
	Nodding
)

var stateNames = map[State]string{
	Initializing: "Initializing",
	GoodPosture:  "GoodPosture",
	BadPosture:   "BadPosture",
	Nodding:      "Nodding",
}

// String returns the state name.
func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Priority orders states when more than one applies to a calibrated frame:
// Nodding > BadPosture > GoodPosture > Initializing.
func (s State) Priority() int {
	return int(s)
}

// Highest returns the candidate with the greatest priority, or Initializing
// when there are none.
func Highest(candidates ...State) State {
	best := Initializing
	for _, c := range candidates {
		if c.Priority() > best.Priority() {
			best = c
		}
	}
	return best
}

// MarshalText encodes the state by name.
func (s State) MarshalText() ([]byte, error) {
	if _, ok := stateNames[s]; !ok {
		return nil, fmt.Errorf("posture: unknown state %d", int(s))
	}
	return []byte(s.String()), nil
}

// UnmarshalText decodes a state name.
func (s *State) UnmarshalText(text []byte) error {
	for st, name := range stateNames {
		if name == string(text) {
			*s = st
			return nil
		}
	}
	return fmt.Errorf("posture: unknown state %q", text)
}

// Package score holds the project's note collection and selection state.
package score

// Note is one piano-roll note event. Start and Duration are in beats;
// conversion to seconds happens at scheduling time, so notes survive tempo
// changes unmodified. Records are replaced on update, never mutated in
// place.
type Note struct {
	ID       string  `json:"id"`
	Pitch    uint8   `json:"pitch"`
	Start    float64 `json:"start"`
	Duration float64 `json:"duration"`
	Velocity uint8   `json:"velocity"`
}

// End returns the note's end position in beats.
func (n Note) End() float64 {
	return n.Start + n.Duration
}

// Patch carries optional replacement fields for Store.Update. Nil fields
// keep the stored value.
type Patch struct {
	Pitch    *uint8   `json:"pitch,omitempty"`
	Start    *float64 `json:"start,omitempty"`
	Duration *float64 `json:"duration,omitempty"`
	Velocity *uint8   `json:"velocity,omitempty"`
}

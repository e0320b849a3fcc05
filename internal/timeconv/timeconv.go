// Package timeconv converts between musical beats and wall-clock seconds.
//
// Tempo is a plain scalar in beats per minute, shared project-wide. Both
// functions are pure and are exact inverses of each other up to
// floating-point rounding. Callers guarantee tempo > 0; a project never
// carries a zero or negative tempo in valid state.
package timeconv

// BeatsToSeconds converts a beat count to seconds at the given tempo.
func BeatsToSeconds(beats, tempo float64) float64 {
	return beats / tempo * 60
}

// SecondsToBeats converts seconds to beats at the given tempo.
func SecondsToBeats(seconds, tempo float64) float64 {
	return seconds / 60 * tempo
}

// Package midifile converts between the note store and standard MIDI
// files.
package midifile

import (
	"fmt"
	"math"
	"sort"

	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/smf"

	"github.com/hi-ogawa/pianoroll-go/internal/score"
	"github.com/hi-ogawa/pianoroll-go/internal/timeconv"
)

const ticksPerQuarter = 960

// ImportResult carries the notes of an SMF file converted to beats at
// the file's own tempo, plus that tempo and the first time signature.
type ImportResult struct {
	Notes       []score.Note
	Tempo       float64
	Numerator   int
	Denominator int
}

// Import reads the SMF file at path. Note IDs are left empty; the store
// assigns them on add. Overlapping note-ons of the same pitch pair with
// note-offs first-in first-out.
func Import(path string) (res ImportResult, err error) {
	// The SMF parser panics on some malformed files; surface that as an
	// error instead of crashing.
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("parse midi file: %v", r)
		}
	}()

	sm, err := smf.ReadFile(path)
	if err != nil {
		return ImportResult{}, fmt.Errorf("read midi file: %w", err)
	}
	ticks, ok := sm.TimeFormat.(smf.MetricTicks)
	if !ok {
		return ImportResult{}, fmt.Errorf("unsupported midi time format %v", sm.TimeFormat)
	}

	res.Tempo = 120
	if tc := sm.TempoChanges(); len(tc) > 0 && tc[0].BPM > 0 {
		res.Tempo = tc[0].BPM
	}
	res.Numerator, res.Denominator = 4, 4

	// One quarter note is one beat; ticks go to seconds at the file's
	// tempo and then to beats.
	secPerTick := timeconv.BeatsToSeconds(1, res.Tempo) / float64(ticks)

	type chKey struct {
		ch, key uint8
	}
	type onEvent struct {
		tick     int64
		velocity uint8
	}
	open := map[chKey][]onEvent{}
	meterSet := false
	for _, tr := range sm.Tracks {
		var now int64
		for _, ev := range tr {
			now += int64(ev.Delta)
			var ch, key, vel uint8
			switch {
			case ev.Message.GetNoteStart(&ch, &key, &vel):
				k := chKey{ch, key}
				open[k] = append(open[k], onEvent{tick: now, velocity: vel})
			case ev.Message.GetNoteEnd(&ch, &key):
				k := chKey{ch, key}
				q := open[k]
				if len(q) == 0 {
					continue
				}
				on := q[0]
				open[k] = q[1:]
				if now <= on.tick {
					continue
				}
				res.Notes = append(res.Notes, score.Note{
					Pitch:    key,
					Start:    timeconv.SecondsToBeats(float64(on.tick)*secPerTick, res.Tempo),
					Duration: timeconv.SecondsToBeats(float64(now-on.tick)*secPerTick, res.Tempo),
					Velocity: on.velocity,
				})
			default:
				var num, denom, cpt, dsqpq uint8
				if !meterSet && ev.Message.GetMetaTimeSig(&num, &denom, &cpt, &dsqpq) {
					res.Numerator, res.Denominator = int(num), int(denom)
					meterSet = true
				}
			}
		}
	}

	sort.Slice(res.Notes, func(i, j int) bool {
		if res.Notes[i].Start != res.Notes[j].Start {
			return res.Notes[i].Start < res.Notes[j].Start
		}
		return res.Notes[i].Pitch < res.Notes[j].Pitch
	})
	return res, nil
}

// Export writes notes as a two-track SMF file: a meta track carrying
// tempo and meter, and one note track on channel 0.
func Export(path string, notes []score.Note, tempo float64, numerator, denominator int) error {
	sm := smf.New()
	sm.TimeFormat = smf.MetricTicks(ticksPerQuarter)

	var meta smf.Track
	meta.Add(0, smf.MetaMeter(uint8(numerator), uint8(denominator)))
	meta.Add(0, smf.MetaTempo(tempo))
	meta.Close(0)
	if err := sm.Add(meta); err != nil {
		return fmt.Errorf("add meta track: %w", err)
	}

	type wireEvent struct {
		tick int64
		off  bool
		key  uint8
		vel  uint8
	}
	events := make([]wireEvent, 0, len(notes)*2)
	for _, n := range notes {
		on := int64(math.Round(n.Start * ticksPerQuarter))
		off := int64(math.Round(n.End() * ticksPerQuarter))
		if off <= on {
			off = on + 1
		}
		events = append(events, wireEvent{tick: on, key: n.Pitch, vel: n.Velocity})
		events = append(events, wireEvent{tick: off, off: true, key: n.Pitch})
	}
	sort.Slice(events, func(i, j int) bool {
		if events[i].tick != events[j].tick {
			return events[i].tick < events[j].tick
		}
		// Offs first so a retriggered pitch is released before it
		// restarts.
		return events[i].off && !events[j].off
	})

	var tr smf.Track
	var last int64
	for _, ev := range events {
		delta := uint32(ev.tick - last)
		last = ev.tick
		if ev.off {
			tr.Add(delta, midi.NoteOff(0, ev.key))
		} else {
			tr.Add(delta, midi.NoteOn(0, ev.key, ev.vel))
		}
	}
	tr.Close(0)
	if err := sm.Add(tr); err != nil {
		return fmt.Errorf("add note track: %w", err)
	}

	if err := sm.WriteFile(path); err != nil {
		return fmt.Errorf("write midi file: %w", err)
	}
	return nil
}

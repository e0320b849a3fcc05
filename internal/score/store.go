package score

import (
	"sort"
	"strconv"
	"strings"
)

// Store is the note collection plus the current selection. All methods are
// synchronous and non-blocking; callers serialize access (the engine holds
// one lock around every mutation), so the store itself carries no locking.
//
// The selection is kept as a set of note ids with copy-on-write semantics:
// every mutation builds a fresh set, so a snapshot handed out earlier is
// never aliased by later edits.
type Store struct {
	notes    []Note
	byID     map[string]int
	selected map[string]struct{}
	nextID   int
}

func NewStore() *Store {
	return &Store{
		byID:     map[string]int{},
		selected: map[string]struct{}{},
		nextID:   1,
	}
}

// Add appends a note. An empty ID is replaced with a generated "note-N"
// id. Uniqueness of caller-assigned ids is the caller's responsibility;
// the store only advances its id counter past any numeric suffix it sees
// so generated ids never collide with loaded ones.
func (s *Store) Add(n Note) Note {
	if n.ID == "" {
		n.ID = "note-" + strconv.Itoa(s.nextID)
		s.nextID++
	} else {
		s.bumpCounter(n.ID)
	}
	s.byID[n.ID] = len(s.notes)
	s.notes = append(s.notes, n)
	return n
}

// Update replaces fields of the note with the given id and reports whether
// the id was present. Absent ids are a no-op.
func (s *Store) Update(id string, p Patch) bool {
	i, ok := s.byID[id]
	if !ok {
		return false
	}
	n := s.notes[i]
	if p.Pitch != nil {
		n.Pitch = *p.Pitch
	}
	if p.Start != nil {
		n.Start = *p.Start
	}
	if p.Duration != nil {
		n.Duration = *p.Duration
	}
	if p.Velocity != nil {
		n.Velocity = *p.Velocity
	}
	s.notes[i] = n
	return true
}

// DeleteMany removes the notes with the given ids and purges them from the
// selection in the same step, so a deleted note can never linger as
// selected. Returns the number of notes removed.
func (s *Store) DeleteMany(ids []string) int {
	drop := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if _, ok := s.byID[id]; ok {
			drop[id] = struct{}{}
		}
	}
	if len(drop) == 0 {
		return 0
	}
	kept := s.notes[:0]
	for _, n := range s.notes {
		if _, gone := drop[n.ID]; !gone {
			kept = append(kept, n)
		}
	}
	s.notes = kept
	s.reindex()

	next := make(map[string]struct{}, len(s.selected))
	for id := range s.selected {
		if _, gone := drop[id]; !gone {
			next[id] = struct{}{}
		}
	}
	s.selected = next
	return len(drop)
}

// Select marks the given ids as selected. In exclusive mode the new set
// replaces the old selection; otherwise the ids are unioned into it. Ids
// not present in the store are ignored.
func (s *Store) Select(ids []string, exclusive bool) {
	next := make(map[string]struct{})
	if !exclusive {
		for id := range s.selected {
			next[id] = struct{}{}
		}
	}
	for _, id := range ids {
		if _, ok := s.byID[id]; ok {
			next[id] = struct{}{}
		}
	}
	s.selected = next
}

// DeselectAll clears the selection.
func (s *Store) DeselectAll() {
	s.selected = map[string]struct{}{}
}

// Selected reports whether the note with the given id is selected.
func (s *Store) Selected(id string) bool {
	_, ok := s.selected[id]
	return ok
}

// SelectedIDs returns the selected ids sorted for stable output. The slice
// is a copy; later store mutations do not alias into it.
func (s *Store) SelectedIDs() []string {
	out := make([]string, 0, len(s.selected))
	for id := range s.selected {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// SelectionCount returns the number of selected notes.
func (s *Store) SelectionCount() int {
	return len(s.selected)
}

// Get returns the note with the given id.
func (s *Store) Get(id string) (Note, bool) {
	i, ok := s.byID[id]
	if !ok {
		return Note{}, false
	}
	return s.notes[i], true
}

// Notes returns a snapshot copy of all notes in insertion order. The
// transport schedules from such a snapshot so later edits never race a
// schedule in progress.
func (s *Store) Notes() []Note {
	out := make([]Note, len(s.notes))
	copy(out, s.notes)
	return out
}

// Len returns the number of notes.
func (s *Store) Len() int {
	return len(s.notes)
}

// SetNotes replaces the whole collection, clears the selection, and
// recomputes the id counter from the maximum numeric suffix among the
// loaded ids so ids generated afterwards cannot collide. Used on project
// load and MIDI import.
func (s *Store) SetNotes(notes []Note) {
	s.notes = make([]Note, 0, len(notes))
	s.byID = make(map[string]int, len(notes))
	s.selected = map[string]struct{}{}
	s.nextID = 1
	for _, n := range notes {
		if n.ID == "" {
			n.ID = "note-" + strconv.Itoa(s.nextID)
			s.nextID++
		} else {
			s.bumpCounter(n.ID)
		}
		s.byID[n.ID] = len(s.notes)
		s.notes = append(s.notes, n)
	}
}

// bumpCounter advances the id counter past the numeric suffix of id, if it
// has one ("note-17" bumps the counter to 18; "intro" is ignored).
func (s *Store) bumpCounter(id string) {
	dash := strings.LastIndexByte(id, '-')
	if dash < 0 || dash == len(id)-1 {
		return
	}
	n, err := strconv.Atoi(id[dash+1:])
	if err != nil {
		return
	}
	if n >= s.nextID {
		s.nextID = n + 1
	}
}

func (s *Store) reindex() {
	s.byID = make(map[string]int, len(s.notes))
	for i, n := range s.notes {
		s.byID[n.ID] = i
	}
}

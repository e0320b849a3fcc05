package score

import (
	"reflect"
	"testing"
)

func u8(v uint8) *uint8      { return &v }
func f64(v float64) *float64 { return &v }

func TestAddGeneratesSequentialIDs(t *testing.T) {
	s := NewStore()
	a := s.Add(Note{Pitch: 60, Start: 0, Duration: 1, Velocity: 100})
	b := s.Add(Note{Pitch: 62, Start: 1, Duration: 1, Velocity: 100})
	if a.ID != "note-1" || b.ID != "note-2" {
		t.Fatalf("generated ids = %q, %q", a.ID, b.ID)
	}
	if s.Len() != 2 {
		t.Fatalf("len = %d, want 2", s.Len())
	}
}

func TestAddSkipsPastCallerAssignedSuffix(t *testing.T) {
	s := NewStore()
	s.Add(Note{ID: "note-41", Pitch: 60, Duration: 1})
	n := s.Add(Note{Pitch: 64, Duration: 1})
	if n.ID != "note-42" {
		t.Fatalf("id after explicit note-41 = %q, want note-42", n.ID)
	}
}

func TestUpdateReplacesOnlyGivenFields(t *testing.T) {
	s := NewStore()
	n := s.Add(Note{Pitch: 60, Start: 2, Duration: 1, Velocity: 90})
	if !s.Update(n.ID, Patch{Pitch: u8(72), Start: f64(3.5)}) {
		t.Fatalf("update reported missing id")
	}
	got, _ := s.Get(n.ID)
	want := Note{ID: n.ID, Pitch: 72, Start: 3.5, Duration: 1, Velocity: 90}
	if got != want {
		t.Fatalf("updated note = %+v, want %+v", got, want)
	}
}

func TestUpdateMissingIDIsNoop(t *testing.T) {
	s := NewStore()
	s.Add(Note{Pitch: 60, Duration: 1})
	if s.Update("nope", Patch{Pitch: u8(1)}) {
		t.Fatalf("update of unknown id should report false")
	}
}

func TestDeleteManyPurgesSelection(t *testing.T) {
	s := NewStore()
	a := s.Add(Note{Pitch: 60, Duration: 1})
	b := s.Add(Note{Pitch: 62, Duration: 1})
	c := s.Add(Note{Pitch: 64, Duration: 1})
	s.Select([]string{a.ID, b.ID, c.ID}, true)

	if got := s.DeleteMany([]string{b.ID}); got != 1 {
		t.Fatalf("deleted %d notes, want 1", got)
	}
	if s.Len() != 2 {
		t.Fatalf("len after delete = %d, want 2", s.Len())
	}
	if s.SelectionCount() != 2 {
		t.Fatalf("selection size after delete = %d, want 2", s.SelectionCount())
	}
	if s.Selected(b.ID) {
		t.Fatalf("deleted note still selected")
	}
	if _, ok := s.Get(b.ID); ok {
		t.Fatalf("deleted note still present")
	}
}

func TestSelectExclusiveAndUnion(t *testing.T) {
	s := NewStore()
	a := s.Add(Note{Pitch: 60, Duration: 1})
	b := s.Add(Note{Pitch: 62, Duration: 1})
	c := s.Add(Note{Pitch: 64, Duration: 1})

	s.Select([]string{a.ID}, true)
	s.Select([]string{b.ID}, false)
	if got := s.SelectedIDs(); !reflect.DeepEqual(got, []string{a.ID, b.ID}) {
		t.Fatalf("union selection = %v", got)
	}

	s.Select([]string{c.ID}, true)
	if got := s.SelectedIDs(); !reflect.DeepEqual(got, []string{c.ID}) {
		t.Fatalf("exclusive selection = %v", got)
	}

	s.Select([]string{"missing"}, false)
	if got := s.SelectedIDs(); !reflect.DeepEqual(got, []string{c.ID}) {
		t.Fatalf("selecting an unknown id changed the selection: %v", got)
	}

	s.DeselectAll()
	if s.SelectionCount() != 0 {
		t.Fatalf("deselect all left %d selected", s.SelectionCount())
	}
}

func TestSelectedIDsSnapshotIsNotAliased(t *testing.T) {
	s := NewStore()
	a := s.Add(Note{Pitch: 60, Duration: 1})
	b := s.Add(Note{Pitch: 62, Duration: 1})
	s.Select([]string{a.ID, b.ID}, true)

	snapshot := s.SelectedIDs()
	s.DeleteMany([]string{a.ID})

	if !reflect.DeepEqual(snapshot, []string{a.ID, b.ID}) {
		t.Fatalf("earlier snapshot changed after mutation: %v", snapshot)
	}
	if got := s.SelectedIDs(); !reflect.DeepEqual(got, []string{b.ID}) {
		t.Fatalf("current selection = %v", got)
	}
}

func TestSetNotesRecomputesIDCounter(t *testing.T) {
	s := NewStore()
	s.Add(Note{Pitch: 60, Duration: 1})
	s.Select([]string{"note-1"}, true)

	s.SetNotes([]Note{
		{ID: "note-3", Pitch: 60, Duration: 1},
		{ID: "intro", Pitch: 62, Duration: 1},
		{ID: "note-17", Pitch: 64, Duration: 1},
	})
	if s.Len() != 3 {
		t.Fatalf("len after SetNotes = %d", s.Len())
	}
	if s.SelectionCount() != 0 {
		t.Fatalf("selection should be cleared on SetNotes")
	}
	n := s.Add(Note{Pitch: 65, Duration: 1})
	if n.ID != "note-18" {
		t.Fatalf("id after load = %q, want note-18", n.ID)
	}
}

func TestNotesReturnsCopy(t *testing.T) {
	s := NewStore()
	s.Add(Note{Pitch: 60, Duration: 1})
	snap := s.Notes()
	s.Update(snap[0].ID, Patch{Pitch: u8(72)})
	if snap[0].Pitch != 60 {
		t.Fatalf("snapshot mutated by later update")
	}
}

func TestNoteEnd(t *testing.T) {
	n := Note{Start: 1.5, Duration: 0.5}
	if n.End() != 2 {
		t.Fatalf("end = %v, want 2", n.End())
	}
}

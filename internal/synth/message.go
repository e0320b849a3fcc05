package synth

type messageKind int

const (
	kindNoteOn messageKind = iota
	kindNoteOff
	kindProgramChange
	kindAllNotesOff
	kindStateRequest
)

// message is one control-surface command. seq restores submission order
// after a batch drain: two goroutines can take sequence numbers in one
// order and reach the channel in the other.
type message struct {
	seq      uint64
	kind     messageKind
	pitch    uint8
	velocity uint8
	channel  uint8
	program  uint8
	delaySec float64
}

func sortBySeq(batch []message) {
	for i := 1; i < len(batch); i++ {
		key := batch[i]
		j := i - 1
		for j >= 0 && batch[j].seq > key.seq {
			batch[j+1] = batch[j]
			j--
		}
		batch[j+1] = key
	}
}

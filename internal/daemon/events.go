package daemon

import (
	"sync"

	"squish/internal/scheduler"
)

// Event pairs a scheduler feed entry with its journal sequence number so
// pollers can resume from where they left off.
type Event struct {
	Seq int64
	scheduler.Event
}

// eventJournal keeps a bounded window of recent feed entries. A poller that
// falls behind loses the oldest entries instead of growing the daemon
// without bound.
type eventJournal struct {
	mu       sync.Mutex
	capacity int
	entries  []Event
	nextSeq  int64
}

func newEventJournal(capacity int) *eventJournal {
	if capacity <= 0 {
		capacity = 256
	}
	return &eventJournal{capacity: capacity}
}

func (j *eventJournal) record(event scheduler.Event) {
	j.mu.Lock()
	defer j.mu.Unlock()

	j.entries = append(j.entries, Event{Seq: j.nextSeq, Event: event})
	j.nextSeq++
	if excess := len(j.entries) - j.capacity; excess > 0 {
		j.entries = append(j.entries[:0], j.entries[excess:]...)
	}
}

// since returns entries with a sequence number at or after cursor, plus the
// cursor for the next poll. Entries evicted before the cursor are skipped; a
// slow poller sees a gap, never a stall.
func (j *eventJournal) since(cursor int64, limit int) ([]Event, int64) {
	j.mu.Lock()
	defer j.mu.Unlock()

	if limit <= 0 || limit > j.capacity {
		limit = j.capacity
	}
	out := make([]Event, 0, limit)
	for _, entry := range j.entries {
		if entry.Seq < cursor {
			continue
		}
		out = append(out, entry)
		if len(out) == limit {
			break
		}
	}
	next := cursor
	if len(out) > 0 {
		next = out[len(out)-1].Seq + 1
	}
	return out, next
}

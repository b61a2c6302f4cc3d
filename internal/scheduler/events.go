package scheduler

import "squish/internal/queue"

// Event is one entry in the push-style progress feed: every status
// transition and every coalesced progress write produces one. Events for a
// single job are ordered; events across jobs are independent.
type Event struct {
	JobID      string
	Status     queue.Status
	Progress   float64
	ChosenPath string
}

func jobEvent(job *queue.Job) Event {
	return Event{
		JobID:      job.ID,
		Status:     job.Status,
		Progress:   job.Progress,
		ChosenPath: job.ChosenPath,
	}
}

// Subscribe registers an event feed consumer. The returned cancel func must
// be called to release the subscription. Slow consumers lose events rather
// than stalling workers.
func (s *Scheduler) Subscribe() (<-chan Event, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextSub
	s.nextSub++
	ch := make(chan Event, 64)
	s.subs[id] = ch

	return ch, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if existing, ok := s.subs[id]; ok {
			delete(s.subs, id)
			close(existing)
		}
	}
}

func (s *Scheduler) publish(event Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ch := range s.subs {
		select {
		case ch <- event:
		default:
		}
	}
}

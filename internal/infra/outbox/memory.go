package outbox

import (
	"context"
	"sort"
	"sync"
	"time"

	appoutbox "rentalspot/internal/app/outbox"
)

// MemoryStore keeps the outbox in process. It backs the memory store backend
// and tests; messages do not survive a restart.
type MemoryStore struct {
	mu   sync.Mutex
	msgs map[string]*Message
	now  func() time.Time
	wake wakeup
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{msgs: map[string]*Message{}, now: func() time.Time { return time.Now().UTC() }, wake: newWakeup()}
}

func (s *MemoryStore) Add(ctx context.Context, record appoutbox.EventRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.msgs[record.ID]; ok {
		return nil
	}
	now := s.now()
	s.msgs[record.ID] = &Message{
		ID:          record.ID,
		Name:        record.Name,
		Payload:     record.Payload,
		OccurredAt:  record.OccurredAt,
		Aggregate:   record.Aggregate,
		Headers:     record.Headers,
		State:       stateNew,
		NextAttempt: now,
		CreatedAt:   now,
	}
	return nil
}

func (s *MemoryStore) Flush(context.Context) error {
	s.wake.signal()
	return nil
}

func (s *MemoryStore) Notify() <-chan struct{} { return s.wake }

func (s *MemoryStore) Claim(ctx context.Context, workerID string) (*Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	var ready []*Message
	for _, m := range s.msgs {
		switch m.State {
		case stateNew, stateFailed:
			if !m.NextAttempt.After(now) {
				ready = append(ready, m)
			}
		case stateClaimed:
			if !m.ClaimedAt.After(now.Add(-claimTimeout)) {
				ready = append(ready, m)
			}
		}
	}
	if len(ready) == 0 {
		return nil, nil
	}
	sort.Slice(ready, func(i, j int) bool {
		if ready[i].NextAttempt.Equal(ready[j].NextAttempt) {
			return ready[i].CreatedAt.Before(ready[j].CreatedAt)
		}
		return ready[i].NextAttempt.Before(ready[j].NextAttempt)
	})
	m := ready[0]
	m.State = stateClaimed
	m.ClaimedBy = workerID
	m.ClaimedAt = now
	out := *m
	return &out, nil
}

func (s *MemoryStore) MarkSent(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if m, ok := s.msgs[id]; ok {
		m.State = stateSent
		m.SentAt = s.now()
	}
	return nil
}

func (s *MemoryStore) MarkFailed(ctx context.Context, id string, next time.Time, errMsg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if m, ok := s.msgs[id]; ok {
		m.State = stateFailed
		m.NextAttempt = next
		m.LastError = errMsg
		m.Attempts++
	}
	return nil
}

// Pending counts messages not yet published.
func (s *MemoryStore) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, m := range s.msgs {
		if m.State != stateSent {
			n++
		}
	}
	return n
}

var (
	_ appoutbox.Outbox = (*MemoryStore)(nil)
	_ Source           = (*MemoryStore)(nil)
)

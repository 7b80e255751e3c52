package chat

import (
	"sort"
	"sync"

	"github.com/gofrs/uuid"
)

// Feed is a room's local message log. History loads and pushed rows both go
// through Ingest, which drops ids already seen and keeps the log sorted by
// (created_at, id) regardless of arrival order.
type Feed struct {
	mu       sync.Mutex
	messages []Message
	seen     map[uuid.UUID]struct{}
}

func NewFeed() *Feed {
	return &Feed{seen: make(map[uuid.UUID]struct{})}
}

// Ingest merges msgs into the log and returns the ones that were new, in log order.
func (f *Feed) Ingest(msgs ...Message) []Message {
	f.mu.Lock()
	defer f.mu.Unlock()

	fresh := make([]Message, 0, len(msgs))
	for _, m := range msgs {
		if _, dup := f.seen[m.ID]; dup {
			continue
		}
		f.seen[m.ID] = struct{}{}
		fresh = append(fresh, m)
	}
	if len(fresh) == 0 {
		return fresh
	}

	sort.Slice(fresh, func(i, j int) bool { return fresh[i].Before(fresh[j]) })

	for _, m := range fresh {
		i := sort.Search(len(f.messages), func(i int) bool { return m.Before(f.messages[i]) })
		f.messages = append(f.messages, Message{})
		copy(f.messages[i+1:], f.messages[i:])
		f.messages[i] = m
	}
	return fresh
}

func (f *Feed) Messages() []Message {
	f.mu.Lock()
	defer f.mu.Unlock()

	out := make([]Message, len(f.messages))
	copy(out, f.messages)
	return out
}

func (f *Feed) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.messages)
}

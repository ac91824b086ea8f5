package cache

import (
	"container/list"
	"context"
	"sync"
)

// memoryItem is one key inside the access-order list.
type memoryItem struct {
	key   string
	entry Entry
}

// MemoryStore is an in-memory LRU store bounded by Options.MaxEntries.
// The front of the access list is the most recently used key, the back the least.
type MemoryStore struct {
	mu    sync.Mutex
	opts  Options
	items map[string]*list.Element
	order *list.List
	stats Stats
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore(opts Options) *MemoryStore {
	return &MemoryStore{
		opts:  opts.withDefaults(),
		items: make(map[string]*list.Element),
		order: list.New(),
	}
}

// Get returns the entry under key and marks it most recently used.
// Entries past their grace window are dropped and reported as a miss.
func (s *MemoryStore) Get(_ context.Context, key string) (Entry, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	el, ok := s.items[key]
	if !ok {
		s.stats.Misses++
		return Entry{}, false, nil
	}
	item := el.Value.(*memoryItem)
	if !s.opts.usable(item.entry, s.opts.Clock.Now()) {
		s.removeElement(el)
		s.stats.Misses++
		return Entry{}, false, nil
	}
	s.order.MoveToFront(el)
	s.stats.Hits++
	return item.entry, true, nil
}

// Set stores entry under key, evicting the least recently used key when a new key
// would exceed capacity.
func (s *MemoryStore) Set(_ context.Context, key string, entry Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if el, ok := s.items[key]; ok {
		el.Value.(*memoryItem).entry = entry
		s.order.MoveToFront(el)
		return nil
	}
	if s.order.Len() >= s.opts.MaxEntries {
		if oldest := s.order.Back(); oldest != nil {
			s.removeElement(oldest)
		}
	}
	s.items[key] = s.order.PushFront(&memoryItem{key: key, entry: entry})
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if el, ok := s.items[key]; ok {
		s.removeElement(el)
	}
	return nil
}

// Clear drops every entry and resets the statistics.
func (s *MemoryStore) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items = make(map[string]*list.Element)
	s.order.Init()
	s.stats = Stats{}
	return nil
}

func (s *MemoryStore) Has(ctx context.Context, key string) (bool, error) {
	_, ok, err := s.Get(ctx, key)
	return ok, err
}

func (s *MemoryStore) Stats(_ context.Context) (Stats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.stats
	st.Entries = int64(len(s.items))
	return st, nil
}

// NewEntry builds an entry using the store's TTL and clock.
func (s *MemoryStore) NewEntry(data any, etag string) Entry {
	return NewEntry(data, etag, s.opts.Clock.Now(), s.opts.TTL)
}

func (s *MemoryStore) removeElement(el *list.Element) {
	s.order.Remove(el)
	delete(s.items, el.Value.(*memoryItem).key)
}

package session

import (
	"container/list"
	"errors"
	"fmt"
	"sync"
	"time"

	"servicechat/internal/models"
)

// ErrSessionNotFound is returned when an operation names a key with no conversation.
var ErrSessionNotFound = errors.New("session not found")

// Seeder supplies the initial conversation for a scenario.
type Seeder interface {
	Seed(scenarioID string) ([]models.Turn, error)
}

// Options bound the store. Zero values mean unbounded.
type Options struct {
	Capacity int           // max live conversations; <= 0 disables LRU eviction
	IdleTTL  time.Duration // conversations idle longer are swept; <= 0 disables
	Now      func() time.Time
}

type entry struct {
	conv     *Conversation
	lastUsed time.Time
}

// Store maps (user, scenario) keys to conversations.
//
// Lock order is store.mu then Conversation.mu. store.mu only guards the index
// and the LRU list, so appends to different keys never wait on each other for
// longer than a map lookup.
type Store struct {
	seeder Seeder

	mu         sync.Mutex
	entries    map[models.SessionKey]*list.Element
	byScenario map[string]map[models.SessionKey]*list.Element
	lru        *list.List // front is most recently used; values are *entry

	capacity int
	idleTTL  time.Duration
	now      func() time.Time
}

// NewStore builds an empty store.
func NewStore(seeder Seeder, opts Options) *Store {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Store{
		seeder:     seeder,
		entries:    make(map[models.SessionKey]*list.Element),
		byScenario: make(map[string]map[models.SessionKey]*list.Element),
		lru:        list.New(),
		capacity:   opts.Capacity,
		idleTTL:    opts.IdleTTL,
		now:        now,
	}
}

// GetOrCreate returns the conversation for key, creating it from the scenario
// seed when absent. Concurrent first contacts for one key share one conversation.
func (s *Store) GetOrCreate(key models.SessionKey) (*Conversation, error) {
	if !key.Valid() {
		return nil, fmt.Errorf("get or create %s: user and scenario are required", key)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.getOrCreateLocked(key)
}

// AppendOrCreate records turn on key's conversation, creating it from the seed
// first when absent. Both happen under one store lock, so capacity eviction
// triggered by other keys cannot drop the conversation in between.
func (s *Store) AppendOrCreate(key models.SessionKey, turn models.Turn) (*Conversation, error) {
	if !key.Valid() {
		return nil, fmt.Errorf("append or create %s: user and scenario are required", key)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	conv, err := s.getOrCreateLocked(key)
	if err != nil {
		return nil, err
	}
	conv.append(turn)
	return conv, nil
}

func (s *Store) getOrCreateLocked(key models.SessionKey) (*Conversation, error) {
	if elem, ok := s.entries[key]; ok {
		s.touchLocked(elem)
		return elem.Value.(*entry).conv, nil
	}

	seed, err := s.seeder.Seed(key.ScenarioID)
	if err != nil {
		return nil, fmt.Errorf("create session %s: %w", key, err)
	}
	conv := newConversation(key, seed)
	elem := s.lru.PushFront(&entry{conv: conv, lastUsed: s.now()})
	s.entries[key] = elem
	bucket := s.byScenario[key.ScenarioID]
	if bucket == nil {
		bucket = make(map[models.SessionKey]*list.Element)
		s.byScenario[key.ScenarioID] = bucket
	}
	bucket[key] = elem

	if s.capacity > 0 {
		for s.lru.Len() > s.capacity {
			s.removeLocked(s.lru.Back())
		}
	}
	return conv, nil
}

// Get returns the conversation for key without creating it.
func (s *Store) Get(key models.SessionKey) (*Conversation, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	elem, ok := s.entries[key]
	if !ok {
		return nil, false
	}
	return elem.Value.(*entry).conv, true
}

// Append adds turn to the end of key's conversation.
func (s *Store) Append(key models.SessionKey, turn models.Turn) error {
	conv, err := s.lookup(key)
	if err != nil {
		return fmt.Errorf("append to %s: %w", key, err)
	}
	conv.append(turn)
	return nil
}

// WindowedView returns at most limit turns: the seed followed by the newest
// limit-1 turns. Conversations that fit are returned whole. limit <= 0 returns
// the whole conversation.
func (s *Store) WindowedView(key models.SessionKey, limit int) ([]models.Turn, error) {
	conv, err := s.lookup(key)
	if err != nil {
		return nil, fmt.Errorf("window %s: %w", key, err)
	}
	return conv.Window(limit), nil
}

// Reset restores every conversation of scenarioID, across all users, to the
// seed. It returns how many conversations were reset. Unknown scenarios reset nothing.
func (s *Store) Reset(scenarioID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	bucket := s.byScenario[scenarioID]
	if len(bucket) == 0 {
		return 0
	}
	seed, err := s.seeder.Seed(scenarioID)
	if err != nil {
		return 0
	}
	for _, elem := range bucket {
		elem.Value.(*entry).conv.reset(seed)
	}
	return len(bucket)
}

// ResetUser restores a single user's conversation for scenarioID to the seed.
func (s *Store) ResetUser(userID, scenarioID string) bool {
	key := models.SessionKey{UserID: userID, ScenarioID: scenarioID}

	s.mu.Lock()
	defer s.mu.Unlock()

	elem, ok := s.entries[key]
	if !ok {
		return false
	}
	seed, err := s.seeder.Seed(scenarioID)
	if err != nil {
		return false
	}
	elem.Value.(*entry).conv.reset(seed)
	s.touchLocked(elem)
	return true
}

// Sweep drops conversations idle for longer than the configured TTL.
func (s *Store) Sweep() int {
	if s.idleTTL <= 0 {
		return 0
	}
	cutoff := s.now().Add(-s.idleTTL)

	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for elem := s.lru.Back(); elem != nil; {
		if elem.Value.(*entry).lastUsed.After(cutoff) {
			break
		}
		prev := elem.Prev()
		s.removeLocked(elem)
		removed++
		elem = prev
	}
	return removed
}

// Len reports the number of live conversations.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lru.Len()
}

func (s *Store) lookup(key models.SessionKey) (*Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	elem, ok := s.entries[key]
	if !ok {
		return nil, ErrSessionNotFound
	}
	s.touchLocked(elem)
	return elem.Value.(*entry).conv, nil
}

func (s *Store) touchLocked(elem *list.Element) {
	elem.Value.(*entry).lastUsed = s.now()
	s.lru.MoveToFront(elem)
}

func (s *Store) removeLocked(elem *list.Element) {
	if elem == nil {
		return
	}
	key := elem.Value.(*entry).conv.key
	s.lru.Remove(elem)
	delete(s.entries, key)
	if bucket := s.byScenario[key.ScenarioID]; bucket != nil {
		delete(bucket, key)
		if len(bucket) == 0 {
			delete(s.byScenario, key.ScenarioID)
		}
	}
}

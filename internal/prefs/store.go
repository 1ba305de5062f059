package prefs

import "sync"

// shardCount trades a little memory for uncontended per-user access: users
// only ever race with others in the same shard, never across shards.
const shardCount = 16

type shard struct {
	mu    sync.Mutex
	users map[int64]*record
}

// Store is a sharded map of user id to preference record. Safe for
// concurrent use by request handlers and delivery jobs.
type Store struct {
	defMu       sync.Mutex
	defaultTime Clock

	shards [shardCount]shard
}

func NewStore(defaultTime Clock) *Store {
	s := &Store{defaultTime: defaultTime}
	for i := range s.shards {
		s.shards[i].users = map[int64]*record{}
	}
	return s
}

// SetDefaultTime changes the delivery time handed to users created from now
// on. Existing records keep their time.
func (s *Store) SetDefaultTime(c Clock) {
	s.defMu.Lock()
	s.defaultTime = c
	s.defMu.Unlock()
}

func (s *Store) shardFor(userID int64) *shard {
	return &s.shards[uint64(userID)%shardCount]
}

func (s *Store) getOrCreateLocked(sh *shard, userID int64) *record {
	r, ok := sh.users[userID]
	if !ok {
		s.defMu.Lock()
		def := s.defaultTime
		s.defMu.Unlock()
		r = &record{
			difficulty:   DifficultyDefault,
			deliveryTime: def,
			completed:    map[string]struct{}{},
		}
		sh.users[userID] = r
	}
	return r
}

// GetOrCreate returns a snapshot of the user's state, creating the record
// with defaults on first contact.
func (s *Store) GetOrCreate(userID int64) Snapshot {
	sh := s.shardFor(userID)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	return snapshotLocked(s.getOrCreateLocked(sh, userID))
}

func snapshotLocked(r *record) Snapshot {
	ex := make(map[string]struct{}, len(r.completed)+len(r.recent))
	for id := range r.completed {
		ex[id] = struct{}{}
	}
	for _, id := range r.recent {
		ex[id] = struct{}{}
	}
	return Snapshot{
		Difficulty:   r.difficulty,
		DeliveryTime: r.deliveryTime,
		Excluded:     ex,
	}
}

// SetDifficulty validates, normalizes and stores the user's difficulty
// choice. On validation failure nothing is mutated.
func (s *Store) SetDifficulty(userID int64, v string) (string, error) {
	norm, err := NormalizeDifficulty(v)
	if err != nil {
		return "", err
	}
	sh := s.shardFor(userID)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	s.getOrCreateLocked(sh, userID).difficulty = norm
	return norm, nil
}

// SetDeliveryTime validates and stores the user's delivery time. On
// validation failure nothing is mutated.
func (s *Store) SetDeliveryTime(userID int64, hhmm string) (Clock, error) {
	c, err := ParseClock(hhmm)
	if err != nil {
		return Clock{}, err
	}
	sh := s.shardFor(userID)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	s.getOrCreateLocked(sh, userID).deliveryTime = c
	return c, nil
}

// RecordDelivery appends the item to the user's recency window, evicting the
// oldest entry beyond the window size. Strict FIFO: an id evicted earlier may
// legitimately re-enter.
func (s *Store) RecordDelivery(userID int64, itemID string) {
	sh := s.shardFor(userID)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	r := s.getOrCreateLocked(sh, userID)
	r.recent = append(r.recent, itemID)
	if len(r.recent) > recentWindow {
		r.recent = r.recent[len(r.recent)-recentWindow:]
	}
}

// MarkResolved adds the item to the user's permanent completed-or-discarded
// set. Done and discard are indistinguishable here; only the user-facing
// acknowledgment differs.
func (s *Store) MarkResolved(userID int64, itemID string) {
	sh := s.shardFor(userID)
	sh.mu.Lock()
	defer sh.mu.Unlock()
	r := s.getOrCreateLocked(sh, userID)
	r.completed[itemID] = struct{}{}
}

// ExcludedIDs returns the union of the user's completed set and recency
// window.
func (s *Store) ExcludedIDs(userID int64) map[string]struct{} {
	return s.GetOrCreate(userID).Excluded
}

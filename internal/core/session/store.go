package session

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
	"go.uber.org/zap"

	"github.com/markdave123-py/docchat/internal/core"
)

// Config bounds the store. Zero TTL disables idle expiry; zero MaxSessions disables the
// capacity bound.
type Config struct {
	TTL         time.Duration
	MaxSessions int
}

// Store maps session ids to sessions. Idle sessions expire after TTL (refreshed on every
// Get) and the least recently used session is evicted when the store is full.
type Store struct {
	mu       sync.Mutex
	cache    *cache.Cache
	ttl      time.Duration
	capacity int
	now      func() time.Time
	logger   *zap.Logger
}

func NewStore(cfg Config, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}

	expiration, cleanup := cache.NoExpiration, time.Duration(0)
	if cfg.TTL > 0 {
		expiration = cfg.TTL
		cleanup = max(cfg.TTL/2, time.Second)
	}

	c := cache.New(expiration, cleanup)
	c.OnEvicted(func(id string, _ interface{}) {
		logger.Debug("session evicted", zap.String("session_id", id))
	})

	return &Store{
		cache:    c,
		ttl:      cfg.TTL,
		capacity: cfg.MaxSessions,
		now:      time.Now,
		logger:   logger,
	}
}

// Create registers a new session and returns its id. Ids are random UUIDs and are never
// reused.
func (s *Store) Create(text, documentName string, conversation core.Conversation) string {
	now := s.now()
	sess := newSession(uuid.NewString(), text, documentName, now, conversation)

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.capacity > 0 && s.cache.ItemCount() >= s.capacity {
		s.evictLocked()
	}
	s.cache.Set(sess.ID, sess, cache.DefaultExpiration)
	return sess.ID
}

// Get looks up a session. A miss is reported with ok == false and never creates state.
func (s *Store) Get(id string) (*Session, bool) {
	if id == "" {
		return nil, false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	x, found := s.cache.Get(id)
	if !found {
		return nil, false
	}
	sess := x.(*Session)
	sess.touch(s.now())
	if s.ttl > 0 {
		// slide the idle deadline
		s.cache.Set(id, sess, cache.DefaultExpiration)
	}
	return sess, true
}

// Len counts live sessions.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.cache.Items())
}

// evictLocked drops expired sessions, then the least recently used ones until there is
// room for one more.
func (s *Store) evictLocked() {
	s.cache.DeleteExpired()

	for s.cache.ItemCount() >= s.capacity {
		var (
			oldestID string
			oldest   time.Time
		)
		for id, item := range s.cache.Items() {
			used := item.Object.(*Session).LastUsed()
			if oldestID == "" || used.Before(oldest) {
				oldestID, oldest = id, used
			}
		}
		if oldestID == "" {
			return
		}
		s.logger.Info("session store full, evicting least recently used",
			zap.String("session_id", oldestID), zap.Int("capacity", s.capacity))
		s.cache.Delete(oldestID)
	}
}

package repository

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/spec-kit/ticketdesk/internal/domain"
)

const (
	viewKeyPrefix = "ticketdesk:view:"
	lockKeyPrefix = "ticketdesk:view-lock:"
)

// ViewStore keeps the per-session ticket views and guards them so that only
// one action per view is in flight.
type ViewStore interface {
	Get(ctx context.Context, sessionID, ticketID string) (*domain.TicketView, error)
	Save(ctx context.Context, view *domain.TicketView, ttl time.Duration) error
	Delete(ctx context.Context, sessionID, ticketID string) error
	// Lock reports false when another action already holds the view. The
	// returned token identifies this holder to Unlock.
	Lock(ctx context.Context, sessionID, ticketID string, ttl time.Duration) (string, bool, error)
	// Unlock releases the lock only while token still holds it.
	Unlock(ctx context.Context, sessionID, ticketID, token string) error
}

// releaseLockScript deletes the lock key only when it still carries the caller's token.
var releaseLockScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

func viewKey(sessionID, ticketID string) string {
	return sessionID + ":" + ticketID
}

type redisViewStore struct {
	client *redis.Client
}

// NewRedisViewStore stores views as JSON values.
func NewRedisViewStore(client *redis.Client) ViewStore {
	return &redisViewStore{client: client}
}

func (s *redisViewStore) Get(ctx context.Context, sessionID, ticketID string) (*domain.TicketView, error) {
	payload, err := s.client.Get(ctx, viewKeyPrefix+viewKey(sessionID, ticketID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	var view domain.TicketView
	if err := json.Unmarshal(payload, &view); err != nil {
		return nil, err
	}
	return &view, nil
}

func (s *redisViewStore) Save(ctx context.Context, view *domain.TicketView, ttl time.Duration) error {
	payload, err := json.Marshal(view)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, viewKeyPrefix+viewKey(view.SessionID, view.TicketID), payload, ttl).Err()
}

func (s *redisViewStore) Delete(ctx context.Context, sessionID, ticketID string) error {
	return s.client.Del(ctx, viewKeyPrefix+viewKey(sessionID, ticketID)).Err()
}

func (s *redisViewStore) Lock(ctx context.Context, sessionID, ticketID string, ttl time.Duration) (string, bool, error) {
	token := uuid.NewString()
	ok, err := s.client.SetNX(ctx, lockKeyPrefix+viewKey(sessionID, ticketID), token, ttl).Result()
	if err != nil || !ok {
		return "", false, err
	}
	return token, true, nil
}

func (s *redisViewStore) Unlock(ctx context.Context, sessionID, ticketID, token string) error {
	return releaseLockScript.Run(ctx, s.client, []string{lockKeyPrefix + viewKey(sessionID, ticketID)}, token).Err()
}

type memoryView struct {
	payload   []byte
	expiresAt time.Time
}

type memoryLock struct {
	token     string
	expiresAt time.Time
}

type memoryViewStore struct {
	mu    sync.Mutex
	views map[string]memoryView
	locks map[string]memoryLock
	now   func() time.Time
}

// NewMemoryViewStore keeps views in process memory. Views are stored
// serialized so callers never share a pointer with the store.
func NewMemoryViewStore() ViewStore {
	return &memoryViewStore{
		views: make(map[string]memoryView),
		locks: make(map[string]memoryLock),
		now:   time.Now,
	}
}

func (s *memoryViewStore) Get(_ context.Context, sessionID, ticketID string) (*domain.TicketView, error) {
	key := viewKey(sessionID, ticketID)
	s.mu.Lock()
	entry, ok := s.views[key]
	if ok && !entry.expiresAt.After(s.now()) {
		delete(s.views, key)
		ok = false
	}
	s.mu.Unlock()
	if !ok {
		return nil, ErrNotFound
	}
	var view domain.TicketView
	if err := json.Unmarshal(entry.payload, &view); err != nil {
		return nil, err
	}
	return &view, nil
}

func (s *memoryViewStore) Save(_ context.Context, view *domain.TicketView, ttl time.Duration) error {
	payload, err := json.Marshal(view)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.views[viewKey(view.SessionID, view.TicketID)] = memoryView{payload: payload, expiresAt: s.now().Add(ttl)}
	return nil
}

func (s *memoryViewStore) Delete(_ context.Context, sessionID, ticketID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.views, viewKey(sessionID, ticketID))
	return nil
}

func (s *memoryViewStore) Lock(_ context.Context, sessionID, ticketID string, ttl time.Duration) (string, bool, error) {
	key := viewKey(sessionID, ticketID)
	s.mu.Lock()
	defer s.mu.Unlock()
	if held, ok := s.locks[key]; ok && held.expiresAt.After(s.now()) {
		return "", false, nil
	}
	token := uuid.NewString()
	s.locks[key] = memoryLock{token: token, expiresAt: s.now().Add(ttl)}
	return token, true, nil
}

func (s *memoryViewStore) Unlock(_ context.Context, sessionID, ticketID, token string) error {
	key := viewKey(sessionID, ticketID)
	s.mu.Lock()
	defer s.mu.Unlock()
	if held, ok := s.locks[key]; ok && held.token == token {
		delete(s.locks, key)
	}
	return nil
}

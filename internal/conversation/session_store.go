package conversation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/wolfman30/facility-lead-chat/internal/intake"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

// DefaultSessionTTL is how long an idle chat session is remembered.
const DefaultSessionTTL = 24 * time.Hour

const (
	sessionKeyPrefix = "chat_session:"
	publishKeyPrefix = "chat_published:"
)

// ErrSessionNotFound is returned when no session exists for an ID.
var ErrSessionNotFound = errors.New("conversation: session not found")

// Session is the server-side record for one widget conversation.
type Session struct {
	ID      string       `json:"id"`
	State   intake.State `json:"state"`
	PageURL string       `json:"page_url,omitempty"`
	// LeadID is set once the completed intake has been published.
	LeadID    string    `json:"lead_id,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

// SessionStore persists sessions between requests.
type SessionStore interface {
	Get(ctx context.Context, id string) (*Session, error)
	Save(ctx context.Context, session *Session) error
	Delete(ctx context.Context, id string) error
	// ClaimPublish returns true for exactly one caller per session ID.
	ClaimPublish(ctx context.Context, id string) (bool, error)
	// ReleasePublish undoes a claim whose publish failed.
	ReleasePublish(ctx context.Context, id string) error
}

// RedisSessionStore keeps sessions as JSON strings with a sliding TTL.
type RedisSessionStore struct {
	redis  *redis.Client
	ttl    time.Duration
	tracer trace.Tracer
}

func NewRedisSessionStore(client *redis.Client, ttl time.Duration) *RedisSessionStore {
	if client == nil {
		panic("conversation: redis client cannot be nil")
	}
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &RedisSessionStore{
		redis:  client,
		ttl:    ttl,
		tracer: otel.Tracer("leadchat.internal.conversation.session"),
	}
}

func (s *RedisSessionStore) Get(ctx context.Context, id string) (*Session, error) {
	ctx, span := s.tracer.Start(ctx, "conversation.session.get")
	defer span.End()

	data, err := s.redis.Get(ctx, sessionKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrSessionNotFound
		}
		span.RecordError(err)
		return nil, fmt.Errorf("conversation: load session: %w", err)
	}
	var session Session
	if err := json.Unmarshal(data, &session); err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("conversation: decode session: %w", err)
	}
	return &session, nil
}

func (s *RedisSessionStore) Save(ctx context.Context, session *Session) error {
	ctx, span := s.tracer.Start(ctx, "conversation.session.save")
	defer span.End()

	if session == nil || session.ID == "" {
		return errors.New("conversation: session id required")
	}
	session.UpdatedAt = time.Now().UTC()
	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("conversation: marshal session: %w", err)
	}
	if err := s.redis.Set(ctx, sessionKey(session.ID), data, s.ttl).Err(); err != nil {
		span.RecordError(err)
		return fmt.Errorf("conversation: persist session: %w", err)
	}
	return nil
}

func (s *RedisSessionStore) Delete(ctx context.Context, id string) error {
	if err := s.redis.Del(ctx, sessionKey(id)).Err(); err != nil {
		return fmt.Errorf("conversation: delete session: %w", err)
	}
	return nil
}

func (s *RedisSessionStore) ClaimPublish(ctx context.Context, id string) (bool, error) {
	ok, err := s.redis.SetNX(ctx, publishKeyPrefix+id, time.Now().UTC().Format(time.RFC3339), s.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("conversation: claim publish: %w", err)
	}
	return ok, nil
}

func (s *RedisSessionStore) ReleasePublish(ctx context.Context, id string) error {
	if err := s.redis.Del(ctx, publishKeyPrefix+id).Err(); err != nil {
		return fmt.Errorf("conversation: release publish: %w", err)
	}
	return nil
}

func sessionKey(id string) string {
	return sessionKeyPrefix + id
}

// MemorySessionStore is a process-local SessionStore for development and tests.
type MemorySessionStore struct {
	mu       sync.Mutex
	ttl      time.Duration
	now      func() time.Time
	sessions map[string]memorySession
	// claimed maps a session ID to when its publish claim lapses.
	claimed   map[string]time.Time
	lastSweep time.Time
}

type memorySession struct {
	data    []byte
	expires time.Time
}

func NewMemorySessionStore(ttl time.Duration) *MemorySessionStore {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &MemorySessionStore{
		ttl:      ttl,
		now:      time.Now,
		sessions: make(map[string]memorySession),
		claimed:  make(map[string]time.Time),
	}
}

func (s *MemorySessionStore) Get(_ context.Context, id string) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	if s.now().After(entry.expires) {
		delete(s.sessions, id)
		return nil, ErrSessionNotFound
	}
	var session Session
	if err := json.Unmarshal(entry.data, &session); err != nil {
		return nil, fmt.Errorf("conversation: decode session: %w", err)
	}
	return &session, nil
}

func (s *MemorySessionStore) Save(_ context.Context, session *Session) error {
	if session == nil || session.ID == "" {
		return errors.New("conversation: session id required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sweep()
	session.UpdatedAt = s.now().UTC()
	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("conversation: marshal session: %w", err)
	}
	s.sessions[session.ID] = memorySession{data: data, expires: s.now().Add(s.ttl)}
	return nil
}

func (s *MemorySessionStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, id)
	return nil
}

func (s *MemorySessionStore) ClaimPublish(_ context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sweep()
	now := s.now()
	if expires, ok := s.claimed[id]; ok && now.Before(expires) {
		return false, nil
	}
	s.claimed[id] = now.Add(s.ttl)
	return true, nil
}

func (s *MemorySessionStore) ReleasePublish(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.claimed, id)
	return nil
}

// Len reports how many sessions and publish claims are held.
func (s *MemorySessionStore) Len() (sessions, claims int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions), len(s.claimed)
}

// sweep drops expired sessions and claims, at most once per minute.
// Callers hold s.mu.
func (s *MemorySessionStore) sweep() {
	now := s.now()
	if now.Sub(s.lastSweep) < time.Minute {
		return
	}
	s.lastSweep = now
	for id, entry := range s.sessions {
		if now.After(entry.expires) {
			delete(s.sessions, id)
		}
	}
	for id, expires := range s.claimed {
		if !now.Before(expires) {
			delete(s.claimed, id)
		}
	}
}

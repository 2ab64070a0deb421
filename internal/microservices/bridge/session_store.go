package bridge

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// SessionRecord is the presence entry kept for each connected uplink
type SessionRecord struct {
	ID          string    `json:"id"`
	RemoteAddr  string    `json:"remote_addr"`
	ConnectedAt time.Time `json:"connected_at"`
	Functions   []string  `json:"functions"`
}

// SessionStore interface for abstraction (in-memory for dev, Redis when shared)
type SessionStore interface {
	Save(ctx context.Context, rec *SessionRecord) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context) ([]*SessionRecord, error)
}

type MemorySessionStore struct {
	mu       sync.RWMutex
	sessions map[string]*SessionRecord
}

func NewMemorySessionStore() *MemorySessionStore {
	return &MemorySessionStore{sessions: make(map[string]*SessionRecord)}
}

func (m *MemorySessionStore) Save(ctx context.Context, rec *SessionRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *rec
	cp.Functions = append([]string(nil), rec.Functions...)
	m.sessions[rec.ID] = &cp
	return nil
}

func (m *MemorySessionStore) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
	return nil
}

func (m *MemorySessionStore) List(ctx context.Context) ([]*SessionRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*SessionRecord, 0, len(m.sessions))
	for _, rec := range m.sessions {
		cp := *rec
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ConnectedAt.Before(out[j].ConnectedAt) })
	return out, nil
}

const (
	sessionKeyPrefix = "uplink:session:"
	sessionIndexKey  = "uplink:sessions"
)

// RedisSessionStore keeps presence in Redis so several bridge processes share it
type RedisSessionStore struct {
	client *redis.Client
	ttl    time.Duration // entries expire if a bridge dies without cleaning up
}

// constructor for RedisSessionStore, zero timeouts in opts get the defaults below
func NewRedisSessionStore(opts *redis.Options, ttl time.Duration) (*RedisSessionStore, error) {
	if opts.DialTimeout == 0 {
		opts.DialTimeout = 5 * time.Second
	}
	if opts.ReadTimeout == 0 {
		opts.ReadTimeout = 3 * time.Second
	}
	if opts.WriteTimeout == 0 {
		opts.WriteTimeout = 3 * time.Second
	}
	rdb := redis.NewClient(opts)

	// Verify connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return &RedisSessionStore{client: rdb, ttl: ttl}, nil
}

func sessionKey(id string) string {
	return sessionKeyPrefix + id
}

func (r *RedisSessionStore) Save(ctx context.Context, rec *SessionRecord) error {
	key := sessionKey(rec.ID)
	fields := map[string]any{
		"id":           rec.ID,
		"remote_addr":  rec.RemoteAddr,
		"connected_at": rec.ConnectedAt.Format(time.RFC3339Nano),
		"functions":    strings.Join(rec.Functions, ","),
	}

	pipe := r.client.TxPipeline()
	pipe.HSet(ctx, key, fields)
	pipe.Expire(ctx, key, r.ttl)
	pipe.SAdd(ctx, sessionIndexKey, rec.ID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to save session %s: %w", rec.ID, err)
	}
	return nil
}

func (r *RedisSessionStore) Delete(ctx context.Context, id string) error {
	pipe := r.client.TxPipeline()
	pipe.Del(ctx, sessionKey(id))
	pipe.SRem(ctx, sessionIndexKey, id)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to delete session %s: %w", id, err)
	}
	return nil
}

func (r *RedisSessionStore) List(ctx context.Context) ([]*SessionRecord, error) {
	ids, err := r.client.SMembers(ctx, sessionIndexKey).Result()
	if err != nil {
		return nil, err
	}

	out := make([]*SessionRecord, 0, len(ids))
	for _, id := range ids {
		fields, err := r.client.HGetAll(ctx, sessionKey(id)).Result()
		if err != nil {
			return nil, err
		}
		if len(fields) == 0 {
			// hash expired, drop the stale index entry
			r.client.SRem(ctx, sessionIndexKey, id)
			continue
		}
		out = append(out, recordFromFields(fields))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ConnectedAt.Before(out[j].ConnectedAt) })
	return out, nil
}

func (r *RedisSessionStore) Close() error {
	return r.client.Close()
}

func recordFromFields(fields map[string]string) *SessionRecord {
	rec := &SessionRecord{
		ID:         fields["id"],
		RemoteAddr: fields["remote_addr"],
	}
	if ts, ok := fields["connected_at"]; ok {
		rec.ConnectedAt, _ = time.Parse(time.RFC3339Nano, ts)
	}
	if fns := fields["functions"]; fns != "" {
		rec.Functions = strings.Split(fns, ",")
	}
	return rec
}

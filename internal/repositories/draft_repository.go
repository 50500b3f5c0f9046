package repositories

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	draftKeyPrefix = "dbml_draft_"
	draftTTL       = 30 * 24 * time.Hour
)

// RedisDraftRepository stores unsaved editor text in Redis so a browser
// reload or server restart can offer the draft back. Drafts expire after
// thirty days of inactivity.
type RedisDraftRepository struct {
	rdb *redis.Client
}

func NewRedisDraftRepository(rdb *redis.Client) *RedisDraftRepository {
	return &RedisDraftRepository{rdb: rdb}
}

func (r *RedisDraftRepository) SaveDraft(ctx context.Context, diagramID uuid.UUID, content string) error {
	key := draftKeyPrefix + diagramID.String()
	return r.rdb.Set(ctx, key, content, draftTTL).Err()
}

func (r *RedisDraftRepository) LoadDraft(ctx context.Context, diagramID uuid.UUID) (string, bool, error) {
	key := draftKeyPrefix + diagramID.String()
	content, err := r.rdb.Get(ctx, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", false, nil
		}
		return "", false, err
	}
	return content, true, nil
}

func (r *RedisDraftRepository) ClearDraft(ctx context.Context, diagramID uuid.UUID) error {
	key := draftKeyPrefix + diagramID.String()
	return r.rdb.Del(ctx, key).Err()
}

// MemoryDraftRepository is the fallback draft store when Redis is not
// configured. Drafts survive only as long as the process.
type MemoryDraftRepository struct {
	mu     sync.RWMutex
	drafts map[uuid.UUID]string
}

func NewMemoryDraftRepository() *MemoryDraftRepository {
	return &MemoryDraftRepository{drafts: make(map[uuid.UUID]string)}
}

func (r *MemoryDraftRepository) SaveDraft(_ context.Context, diagramID uuid.UUID, content string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.drafts[diagramID] = content
	return nil
}

func (r *MemoryDraftRepository) LoadDraft(_ context.Context, diagramID uuid.UUID) (string, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	content, ok := r.drafts[diagramID]
	return content, ok, nil
}

func (r *MemoryDraftRepository) ClearDraft(_ context.Context, diagramID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.drafts, diagramID)
	return nil
}

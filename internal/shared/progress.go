package shared

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Progress captures the observable state of a long-running operation.
type Progress struct {
	OperationID string    `json:"operation_id"`
	Stage       string    `json:"stage"`
	Processed   int       `json:"processed"`
	Total       int       `json:"total"`
	Message     string    `json:"message"`
	Done        bool      `json:"done"`
	Success     bool      `json:"success"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// ProgressStore persists operation progress in Redis so any replica can
// answer polling requests.
type ProgressStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewProgressStore constructs a ProgressStore.
func NewProgressStore(client *redis.Client, ttl time.Duration) *ProgressStore {
	return &ProgressStore{client: client, ttl: ttl}
}

// Begin registers a new operation and returns its id.
func (ps *ProgressStore) Begin(ctx context.Context, stage string) (string, error) {
	id := uuid.NewString()
	p := Progress{OperationID: id, Stage: stage, UpdatedAt: time.Now().UTC()}
	if err := ps.put(ctx, p); err != nil {
		return "", err
	}
	return id, nil
}

// Update overwrites the stored progress for its operation id.
func (ps *ProgressStore) Update(ctx context.Context, p Progress) error {
	if p.OperationID == "" {
		return errors.New("shared: progress update without operation id")
	}
	p.UpdatedAt = time.Now().UTC()
	return ps.put(ctx, p)
}

// Get loads the progress for an operation id.
func (ps *ProgressStore) Get(ctx context.Context, operationID string) (*Progress, error) {
	payload, err := ps.client.Get(ctx, ps.redisKey(operationID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	var p Progress
	if err := json.Unmarshal(payload, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (ps *ProgressStore) put(ctx context.Context, p Progress) error {
	data, err := json.Marshal(p)
	if err != nil {
		return err
	}
	return ps.client.Set(ctx, ps.redisKey(p.OperationID), data, ps.ttl).Err()
}

func (ps *ProgressStore) redisKey(id string) string {
	return "progress:" + id
}

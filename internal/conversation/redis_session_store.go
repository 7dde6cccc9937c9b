package conversation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

const (
	defaultSessionTTL = 24 * time.Hour

	// A lease must outlive one turn: provider timeout plus sink timeout.
	defaultSessionLease = time.Minute
	defaultLeaseWait    = 30 * time.Second
	leasePollInterval   = 50 * time.Millisecond
)

// releaseLease deletes the lease only if this holder still owns it.
var releaseLease = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisSessionStore stores JSON encoded sessions with a TTL refreshed on save.
// Saves are optimistic (WATCH on the session key) and turns can be serialised
// across instances with a SET NX lease.
type RedisSessionStore struct {
	redis     *redis.Client
	ttl       time.Duration
	lease     time.Duration
	leaseWait time.Duration
	tracer    trace.Tracer
}

func NewRedisSessionStore(client *redis.Client, ttl time.Duration, tracer trace.Tracer) *RedisSessionStore {
	if client == nil {
		panic("conversation: redis client cannot be nil")
	}
	if ttl <= 0 {
		ttl = defaultSessionTTL
	}
	if tracer == nil {
		tracer = otel.Tracer("support.internal.conversation.sessions")
	}
	return &RedisSessionStore{
		redis:     client,
		ttl:       ttl,
		lease:     defaultSessionLease,
		leaseWait: defaultLeaseWait,
		tracer:    tracer,
	}
}

func (s *RedisSessionStore) Save(ctx context.Context, sessionID string, state State) error {
	ctx, span := s.tracer.Start(ctx, "conversation.save_session")
	defer span.End()

	expected := state.Version
	state.Version = expected + 1
	data, err := json.Marshal(state)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("conversation: failed to marshal session: %w", err)
	}

	key := sessionKey(sessionID)
	err = s.redis.Watch(ctx, func(tx *redis.Tx) error {
		stored, err := storedVersion(ctx, tx, key)
		if err != nil {
			return err
		}
		if stored != expected {
			return ErrSessionConflict
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, s.ttl)
			return nil
		})
		return err
	}, key)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrSessionConflict), errors.Is(err, redis.TxFailedErr):
		return ErrSessionConflict
	default:
		span.RecordError(err)
		return fmt.Errorf("conversation: failed to persist session: %w", err)
	}
}

func storedVersion(ctx context.Context, tx *redis.Tx, key string) (int64, error) {
	data, err := tx.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	var head struct {
		Version int64 `json:"version"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return 0, fmt.Errorf("conversation: failed to decode stored session: %w", err)
	}
	return head.Version, nil
}

func (s *RedisSessionStore) Load(ctx context.Context, sessionID string) (State, bool, error) {
	ctx, span := s.tracer.Start(ctx, "conversation.load_session")
	defer span.End()

	data, err := s.redis.Get(ctx, sessionKey(sessionID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return State{}, false, nil
		}
		span.RecordError(err)
		return State{}, false, fmt.Errorf("conversation: failed to load session: %w", err)
	}

	var state State
	if err := json.Unmarshal(data, &state); err != nil {
		span.RecordError(err)
		return State{}, false, fmt.Errorf("conversation: failed to decode session: %w", err)
	}
	return state.normalize(), true, nil
}

// Lock takes the session lease, polling until leaseWait elapses.
func (s *RedisSessionStore) Lock(ctx context.Context, sessionID string) (func(), error) {
	ctx, span := s.tracer.Start(ctx, "conversation.lock_session")
	defer span.End()

	key := sessionLockKey(sessionID)
	token := uuid.NewString()
	deadline := time.Now().Add(s.leaseWait)
	for {
		ok, err := s.redis.SetNX(ctx, key, token, s.lease).Result()
		if err != nil {
			span.RecordError(err)
			return nil, fmt.Errorf("conversation: failed to acquire session lease: %w", err)
		}
		if ok {
			return func() {
				releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
				defer cancel()
				_ = releaseLease.Run(releaseCtx, s.redis, []string{key}, token).Err()
			}, nil
		}
		if !time.Now().Before(deadline) {
			return nil, ErrSessionBusy
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(leasePollInterval):
		}
	}
}

func sessionKey(id string) string {
	return fmt.Sprintf("chat_session:%s", id)
}

func sessionLockKey(id string) string {
	return fmt.Sprintf("chat_session_lock:%s", id)
}

package store

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"strings"

	"github.com/redis/go-redis/v9"

	"pairgogo/backend/internal/config"
)

// eventChannel carries the key of every committed change so subscribers on
// other server instances can re-read their prefix.
const eventChannel = "store:events"

// Redis is the Store implementation shared between server instances. Values
// are JSON strings; transactions use WATCH + MULTI/EXEC, retried on
// interference the way go-redis documents optimistic locking.
type Redis struct {
	Client *redis.Client
}

// NewRedis wraps an existing client.
func NewRedis(client *redis.Client) *Redis {
	return &Redis{Client: client}
}

func (r *Redis) Get(ctx context.Context, key string, dest any) error {
	raw, err := r.Client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, dest)
}

func (r *Redis) Put(ctx context.Context, key string, val any) error {
	raw, err := json.Marshal(val)
	if err != nil {
		return err
	}
	if err := r.Client.Set(ctx, key, raw, 0).Err(); err != nil {
		return err
	}
	return r.Client.Publish(ctx, eventChannel, key).Err()
}

func (r *Redis) Delete(ctx context.Context, key string) error {
	if err := r.Client.Del(ctx, key).Err(); err != nil {
		return err
	}
	return r.Client.Publish(ctx, eventChannel, key).Err()
}

func (r *Redis) List(ctx context.Context, prefix string) (Snapshot, error) {
	snap := make(Snapshot)
	iter := r.Client.Scan(ctx, 0, prefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		raw, err := r.Client.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			continue // deleted between scan and read
		}
		if err != nil {
			return nil, err
		}
		snap[key] = json.RawMessage(raw)
	}
	if err := iter.Err(); err != nil {
		return nil, err
	}
	return snap, nil
}

func (r *Redis) Subscribe(ctx context.Context, prefix string) (<-chan Snapshot, func()) {
	out := make(chan Snapshot, 1)
	subCtx, cancel := context.WithCancel(ctx)
	pubsub := r.Client.Subscribe(subCtx, eventChannel)

	push := func() {
		snap, err := r.List(subCtx, prefix)
		if err != nil {
			if subCtx.Err() == nil {
				log.Printf("store: snapshot of %q failed: %v", prefix, err)
			}
			return
		}
		select {
		case out <- snap:
		default:
			select {
			case <-out:
			default:
			}
			out <- snap
		}
	}

	go func() {
		defer pubsub.Close()
		push() // initial snapshot
		ch := pubsub.Channel()
		for {
			select {
			case <-subCtx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				if strings.HasPrefix(msg.Payload, prefix) {
					push()
				}
			}
		}
	}()

	return out, cancel
}

// Update implements the optimistic transaction: watch the declared keys,
// read through the watched connection, queue writes into one MULTI/EXEC.
// TxFailedErr means somebody else touched a watched key first; re-run fn
// against the new state.
func (r *Redis) Update(ctx context.Context, watched []string, fn func(Tx) error) error {
	for attempt := 0; attempt < config.StoreTxMaxRetries; attempt++ {
		var changed []string
		err := r.Client.Watch(ctx, func(tx *redis.Tx) error {
			rt := &redisTx{ctx: ctx, tx: tx, writes: make(map[string][]byte)}
			if err := fn(rt); err != nil {
				return err
			}
			if len(rt.writes) == 0 && len(rt.deletes) == 0 {
				return nil // validation no-op, nothing to commit
			}
			_, err := tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				for _, key := range rt.deletes {
					pipe.Del(ctx, key)
					changed = append(changed, key)
				}
				for key, raw := range rt.writes {
					pipe.Set(ctx, key, raw, 0)
					changed = append(changed, key)
				}
				return nil
			})
			return err
		}, watched...)

		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			return err
		}
		for _, key := range changed {
			if perr := r.Client.Publish(ctx, eventChannel, key).Err(); perr != nil {
				log.Printf("store: publish %q failed: %v", key, perr)
			}
		}
		return nil
	}
	return ErrConflict
}

type redisTx struct {
	ctx     context.Context
	tx      *redis.Tx
	writes  map[string][]byte
	deletes []string
}

func (t *redisTx) Get(key string, dest any) error {
	for _, d := range t.deletes {
		if d == key {
			return ErrNotFound
		}
	}
	if raw, ok := t.writes[key]; ok {
		return json.Unmarshal(raw, dest)
	}
	raw, err := t.tx.Get(t.ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, dest)
}

func (t *redisTx) Put(key string, val any) error {
	raw, err := json.Marshal(val)
	if err != nil {
		return err
	}
	for i, d := range t.deletes {
		if d == key {
			t.deletes = append(t.deletes[:i], t.deletes[i+1:]...)
			break
		}
	}
	t.writes[key] = raw
	return nil
}

func (t *redisTx) Delete(key string) {
	delete(t.writes, key)
	t.deletes = append(t.deletes, key)
}

package store

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
)

// Memory is the in-process Store implementation. A single mutex serializes
// every mutation, so transactions are trivially serializable; subscribers
// get their snapshots from a per-subscriber channel with a one-slot buffer,
// replacing a pending undelivered snapshot instead of blocking the writer.
type Memory struct {
	mu   sync.Mutex
	docs map[string][]byte
	subs map[*memSub]struct{}
}

type memSub struct {
	prefix string
	ch     chan Snapshot
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		docs: make(map[string][]byte),
		subs: make(map[*memSub]struct{}),
	}
}

func (m *Memory) Get(ctx context.Context, key string, dest any) error {
	m.mu.Lock()
	raw, ok := m.docs[key]
	m.mu.Unlock()
	if !ok {
		return ErrNotFound
	}
	return json.Unmarshal(raw, dest)
}

func (m *Memory) Put(ctx context.Context, key string, val any) error {
	raw, err := json.Marshal(val)
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.docs[key] = raw
	m.notifyLocked(key)
	m.mu.Unlock()
	return nil
}

func (m *Memory) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	if _, ok := m.docs[key]; ok {
		delete(m.docs, key)
		m.notifyLocked(key)
	}
	m.mu.Unlock()
	return nil
}

func (m *Memory) List(ctx context.Context, prefix string) (Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshotLocked(prefix), nil
}

func (m *Memory) Subscribe(ctx context.Context, prefix string) (<-chan Snapshot, func()) {
	sub := &memSub{prefix: prefix, ch: make(chan Snapshot, 1)}

	m.mu.Lock()
	m.subs[sub] = struct{}{}
	sub.ch <- m.snapshotLocked(prefix) // initial snapshot
	m.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			m.mu.Lock()
			delete(m.subs, sub)
			m.mu.Unlock()
		})
	}
	return sub.ch, cancel
}

// Update holds the store lock for the duration of fn, which makes the
// transaction serializable relative to every other operation. Writes are
// buffered and applied only when fn returns nil.
func (m *Memory) Update(ctx context.Context, watched []string, fn func(Tx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	tx := &memTx{store: m, writes: make(map[string][]byte), deletes: make(map[string]struct{})}
	if err := fn(tx); err != nil {
		return err
	}

	for key := range tx.deletes {
		if _, ok := m.docs[key]; ok {
			delete(m.docs, key)
			m.notifyLocked(key)
		}
	}
	for key, raw := range tx.writes {
		m.docs[key] = raw
		m.notifyLocked(key)
	}
	return nil
}

type memTx struct {
	store   *Memory
	writes  map[string][]byte
	deletes map[string]struct{}
}

func (t *memTx) Get(key string, dest any) error {
	// Reads observe the transaction's own pending writes first.
	if _, gone := t.deletes[key]; gone {
		return ErrNotFound
	}
	raw, ok := t.writes[key]
	if !ok {
		raw, ok = t.store.docs[key]
	}
	if !ok {
		return ErrNotFound
	}
	return json.Unmarshal(raw, dest)
}

func (t *memTx) Put(key string, val any) error {
	raw, err := json.Marshal(val)
	if err != nil {
		return err
	}
	delete(t.deletes, key)
	t.writes[key] = raw
	return nil
}

func (t *memTx) Delete(key string) {
	delete(t.writes, key)
	t.deletes[key] = struct{}{}
}

// snapshotLocked copies every document under prefix. Callers hold mu.
func (m *Memory) snapshotLocked(prefix string) Snapshot {
	snap := make(Snapshot)
	for key, raw := range m.docs {
		if strings.HasPrefix(key, prefix) {
			cp := make(json.RawMessage, len(raw))
			copy(cp, raw)
			snap[key] = cp
		}
	}
	return snap
}

// notifyLocked pushes a fresh snapshot to every subscriber watching the
// changed key. A pending undelivered snapshot is replaced, never queued.
func (m *Memory) notifyLocked(key string) {
	for sub := range m.subs {
		if !strings.HasPrefix(key, sub.prefix) {
			continue
		}
		snap := m.snapshotLocked(sub.prefix)
		select {
		case sub.ch <- snap:
		default:
			select {
			case <-sub.ch:
			default:
			}
			sub.ch <- snap
		}
	}
}

/*
Package redis provides an optimistic generic.DocumentStore on Redis.

PURPOSE:
  Each ledger document lives under its own key (<prefix><name>). Update
  WATCHes every ledger key, runs the callback against the watched values and
  writes the staged bodies in one MULTI/EXEC. If another writer touched any
  watched key in between, EXEC fails and the callback runs again against the
  fresh values.

RETRIES:
  Up to MaxRetries attempts, then generic.ErrConcurrentModification. The
  callback may therefore run several times and must be re-entrant.

USAGE:
  client, err := redisstore.Connect(ctx, "localhost:6379", 0)
  store := redisstore.New(client, "leave:")

SEE ALSO:
  - generic/store.go: DocumentStore contract
  - store/sqlite: single-writer alternative
*/
package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/warp/leave-ledger/generic"
)

const defaultMaxRetries = 10

// Store implements generic.DocumentStore with WATCH/MULTI/EXEC.
type Store struct {
	client     *redis.Client
	prefix     string
	MaxRetries int
}

// Connect creates a client and verifies the server answers.
func Connect(ctx context.Context, addr string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr: addr,
		DB:   db,
	})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("store/redis: ping: %w", err)
	}
	return client, nil
}

func New(client *redis.Client, prefix string) *Store {
	return &Store{client: client, prefix: prefix, MaxRetries: defaultMaxRetries}
}

func (s *Store) key(name string) string { return s.prefix + name }

// Load returns the stored body, or nil if the key does not exist.
func (s *Store) Load(ctx context.Context, name string) ([]byte, error) {
	body, err := s.client.Get(ctx, s.key(name)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("store/redis: get %s: %w", name, err)
	}
	return body, nil
}

// Update runs fn under WATCH on every ledger key and commits its writes in a
// single transaction, retrying when a concurrent writer wins.
func (s *Store) Update(ctx context.Context, fn func(tx generic.DocumentTx) error) error {
	keys := make([]string, len(generic.LedgerDocuments))
	for i, name := range generic.LedgerDocuments {
		keys[i] = s.key(name)
	}

	for attempt := 0; attempt < s.MaxRetries; attempt++ {
		err := s.client.Watch(ctx, func(rtx *redis.Tx) error {
			view := &txView{ctx: ctx, rtx: rtx, store: s, staged: make(map[string][]byte)}
			if err := fn(view); err != nil {
				return err
			}
			if len(view.staged) == 0 {
				return nil
			}
			_, err := rtx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				for name, body := range view.staged {
					pipe.Set(ctx, s.key(name), body, 0)
				}
				return nil
			})
			return err
		}, keys...)

		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			var domainErr *generic.Error
			if errors.As(err, &domainErr) || errors.Is(err, generic.ErrPersistence) {
				return err
			}
			return generic.Persistence("redis update", err)
		}
		return nil
	}
	return generic.ErrConcurrentModification
}

type txView struct {
	ctx    context.Context
	rtx    *redis.Tx
	store  *Store
	staged map[string][]byte
}

func (v *txView) Get(name string) ([]byte, error) {
	if body, ok := v.staged[name]; ok {
		return append([]byte(nil), body...), nil
	}
	body, err := v.rtx.Get(v.ctx, v.store.key(name)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return body, nil
}

func (v *txView) Put(name string, body []byte) {
	v.staged[name] = append([]byte(nil), body...)
}

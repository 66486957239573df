package auth

import (
	"time"

	"github.com/boj/redistore"
	"github.com/gomodule/redigo/redis"
	"github.com/gorilla/sessions"
	"github.com/quasoft/memstore"
)

// NewMemoryStore returns a single-process session store. The cookie carries
// only the signed session id, and its signature expires after opts.MaxAge so
// an idle session cannot be replayed once the cookie lifetime has passed.
func NewMemoryStore(opts sessions.Options, keyPairs ...[]byte) *memstore.MemStore {
	store := memstore.NewMemStore(keyPairs...)
	store.MaxAge(opts.MaxAge)
	o := opts
	store.Options = &o
	return store
}

// NewRedisStore returns a redistore-backed session store shared by every
// replica pointing at redisURL.
func NewRedisStore(redisURL string, opts sessions.Options, keyPairs ...[]byte) (*redistore.RediStore, error) {
	pool := &redis.Pool{
		MaxIdle:     10,
		IdleTimeout: 240 * time.Second,
		Dial: func() (redis.Conn, error) {
			return redis.DialURL(redisURL)
		},
		TestOnBorrow: func(c redis.Conn, t time.Time) error {
			if time.Since(t) < time.Minute {
				return nil
			}
			_, err := c.Do("PING")
			return err
		},
	}

	store, err := redistore.NewRediStoreWithPool(pool, keyPairs...)
	if err != nil {
		return nil, err
	}
	store.SetKeyPrefix("pv:session:")
	store.SetMaxAge(opts.MaxAge)
	o := opts
	store.Options = &o
	return store, nil
}

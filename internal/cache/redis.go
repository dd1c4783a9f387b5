package cache

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const exportLockKeyFmt = "export:lock:"

var client *redis.Client

// Options describes the Redis connection
type Options struct {
	Addr     string
	Password string
	DB       int
}

// Init connects to Redis. On failure the client stays nil and callers degrade to
// in-process behaviour.
func Init(opts Options) error {
	c := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := c.Ping(ctx).Err(); err != nil {
		c.Close()
		client = nil
		return err
	}
	client = c
	return nil
}

// GetClient returns the Redis client, nil when Redis is unavailable
func GetClient() *redis.Client {
	return client
}

// Close releases the connection pool
func Close() {
	if client != nil {
		client.Close()
		client = nil
	}
}

// releaseScript deletes the lock only if we still own it
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// guard matches services.ExportGuard
type guard interface {
	TryAcquire(ctx context.Context, key string) (func(), bool, error)
}

// ExportLock is a single-slot export lock shared by every server instance.
// Without Redis it delegates to the in-process fallback.
type ExportLock struct {
	client   *redis.Client
	ttl      time.Duration
	fallback guard
	onError  func(error)
}

// NewExportLock uses c (may be nil). ttl bounds how long a crashed export can hold a key.
func NewExportLock(c *redis.Client, ttl time.Duration, fallback guard, onError func(error)) *ExportLock {
	if ttl <= 0 {
		ttl = time.Minute
	}
	if onError == nil {
		onError = func(error) {}
	}
	return &ExportLock{client: c, ttl: ttl, fallback: fallback, onError: onError}
}

func (l *ExportLock) TryAcquire(ctx context.Context, key string) (func(), bool, error) {
	if l.client == nil {
		return l.fallback.TryAcquire(ctx, key)
	}

	redisKey := exportLockKeyFmt + key
	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, redisKey, token, l.ttl).Result()
	if err != nil {
		l.onError(err)
		return l.fallback.TryAcquire(ctx, key)
	}
	if !ok {
		return nil, false, nil
	}

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := releaseScript.Run(ctx, l.client, []string{redisKey}, token).Err(); err != nil {
			l.onError(err)
		}
	}, true, nil
}

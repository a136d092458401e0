package lock

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"

	apperrors "github.com/rgehrsitz/rentgo/internal/domain/errors"
)

// DefaultTTL bounds how long a crashed run can keep the lock. A live holder
// extends it every third of the ttl until release, so runs may outlast it.
const DefaultTTL = 10 * time.Minute

// releaseScript deletes the key only if it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// extendScript resets the expiry only if the key still holds our token.
var extendScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0
`)

// Redis is a Locker shared by every host that talks to the same server.
type Redis struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedis wraps an existing client. A non-positive ttl means DefaultTTL.
func NewRedis(client *redis.Client, ttl time.Duration) *Redis {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Redis{client: client, ttl: ttl}
}

// DialRedis connects to url (redis://host:port/db) and checks the connection.
func DialRedis(ctx context.Context, url string, ttl time.Duration) (*Redis, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}
	opts.DialTimeout = 5 * time.Second
	opts.ReadTimeout = 3 * time.Second
	opts.WriteTimeout = 3 * time.Second

	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return NewRedis(client, ttl), nil
}

// Close closes the underlying client.
func (r *Redis) Close() error {
	return r.client.Close()
}

func (r *Redis) Acquire(ctx context.Context, name string) (Release, error) {
	token := uuid.NewString()
	ok, err := r.client.SetNX(ctx, name, token, r.ttl).Result()
	if err != nil {
		return nil, apperrors.NewInternalError("failed to acquire lock", err)
	}
	if !ok {
		return nil, ErrHeld.WithDetail("lock", name)
	}

	stop := make(chan struct{})
	var once sync.Once
	go r.keepAlive(name, token, stop)

	return func(ctx context.Context) error {
		once.Do(func() { close(stop) })
		n, err := releaseScript.Run(ctx, r.client, []string{name}, token).Int64()
		if err != nil {
			return apperrors.NewInternalError("failed to release lock", err)
		}
		if n == 0 {
			return fmt.Errorf("lock %s expired before release", name)
		}
		return nil
	}, nil
}

// keepAlive extends the lock until stop is closed or the lock is lost.
func (r *Redis) keepAlive(name, token string, stop <-chan struct{}) {
	interval := r.ttl / 3
	if interval <= 0 {
		interval = r.ttl
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), interval)
			held, err := r.extend(ctx, name, token)
			cancel()
			if err == nil && !held {
				return
			}
		}
	}
}

// extend resets the ttl of name if token still owns it.
func (r *Redis) extend(ctx context.Context, name, token string) (bool, error) {
	n, err := extendScript.Run(ctx, r.client, []string{name}, token, r.ttl.Milliseconds()).Int64()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

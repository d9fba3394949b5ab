package lock

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// ErrNotAcquired is returned when the wait budget runs out before the
// lock could be taken.
var ErrNotAcquired = errors.New("lock not acquired")

// releaseScript deletes the key only when it still holds our token, so an
// expired lease never removes somebody else's lock.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// renewScript extends the lease only while it still holds our token.
var renewScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0
`)

// RedisOptions tunes the Redis locker.
type RedisOptions struct {
	TTL           time.Duration // lease length; bounds how long a crashed holder blocks others. Renewed every TTL/3 while held.
	Wait          time.Duration // how long Lock polls before giving up
	RetryInterval time.Duration
}

// Redis is a Locker shared by every process that talks to the same Redis.
type Redis struct {
	client *redis.Client
	opts   RedisOptions
	logger zerolog.Logger
}

// NewRedis creates a new Redis locker.
func NewRedis(client *redis.Client, opts RedisOptions, logger zerolog.Logger) *Redis {
	if opts.TTL <= 0 {
		opts.TTL = 10 * time.Second
	}
	if opts.Wait <= 0 {
		opts.Wait = 5 * time.Second
	}
	if opts.RetryInterval <= 0 {
		opts.RetryInterval = 25 * time.Millisecond
	}
	return &Redis{
		client: client,
		opts:   opts,
		logger: logger.With().Str("component", "lock").Logger(),
	}
}

func (r *Redis) Lock(ctx context.Context, key string) (func(), error) {
	redisKey := "lock:" + key
	token := uuid.NewString()

	ctx, cancel := context.WithTimeout(ctx, r.opts.Wait)
	defer cancel()

	for {
		ok, err := r.client.SetNX(ctx, redisKey, token, r.opts.TTL).Result()
		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) {
				return nil, fmt.Errorf("lock %s: %w", key, ErrNotAcquired)
			}
			return nil, fmt.Errorf("lock %s: %w", key, err)
		}
		if ok {
			return r.hold(redisKey, token), nil
		}

		timer := time.NewTimer(r.opts.RetryInterval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, fmt.Errorf("lock %s: %w", key, ErrNotAcquired)
		case <-timer.C:
		}
	}
}

// hold renews the lease every TTL/3 until the returned release runs, so
// only a holder that stops running lets the lease lapse.
func (r *Redis) hold(redisKey, token string) func() {
	done := make(chan struct{})
	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		r.renew(done, redisKey, token)
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			close(done)
			<-stopped

			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			if err := releaseScript.Run(ctx, r.client, []string{redisKey}, token).Err(); err != nil {
				// the lease expires on its own after TTL
				r.logger.Warn().Err(err).Str("key", redisKey).Msg("release lock")
			}
		})
	}
}

func (r *Redis) renew(done <-chan struct{}, redisKey, token string) {
	every := r.opts.TTL / 3
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
		}

		ctx, cancel := context.WithTimeout(context.Background(), every)
		n, err := renewScript.Run(ctx, r.client, []string{redisKey}, token, r.opts.TTL.Milliseconds()).Int64()
		cancel()
		switch {
		case err != nil:
			// try again on the next tick while the lease has time left
			r.logger.Warn().Err(err).Str("key", redisKey).Msg("renew lock")
		case n == 0:
			r.logger.Error().Str("key", redisKey).Msg("lock lease lost before release")
			return
		}
	}
}

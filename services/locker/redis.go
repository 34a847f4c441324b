package locker

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"github.com/trezcool/horarios/core/schedule"
)

const (
	defaultTTL       = 15 * time.Second
	defaultRetryWait = 50 * time.Millisecond
	keyPrefix        = "horarios:lock:"
)

// ErrLockLost is returned on release when the lock expired and was taken by someone else.
var ErrLockLost = errors.New("lock expired before release")

// releaseScript deletes the lock only if it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Redis is a keyed lock shared by every process using the same Redis server.
// A lock expires after its TTL so a crashed holder cannot block a key forever.
type Redis struct {
	client    redis.UniversalClient
	ttl       time.Duration
	retryWait time.Duration
}

var _ schedule.Locker = (*Redis)(nil) // interface compliance check

func NewRedis(client redis.UniversalClient, ttl time.Duration) *Redis {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &Redis{client: client, ttl: ttl, retryWait: defaultRetryWait}
}

// Lock retries until the key is acquired or ctx is done.
func (r *Redis) Lock(ctx context.Context, key string) (func() error, error) {
	key = keyPrefix + key
	token := uuid.NewString()

	for {
		ok, err := r.client.SetNX(ctx, key, token, r.ttl).Result()
		if err != nil {
			return nil, errors.Wrapf(err, "acquiring %s", key)
		}
		if ok {
			break
		}

		timer := time.NewTimer(r.retryWait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}

	return func() error {
		// release even when the caller's context is already cancelled
		n, err := releaseScript.Run(context.Background(), r.client, []string{key}, token).Int()
		if err != nil {
			return errors.Wrapf(err, "releasing %s", key)
		}
		if n == 0 {
			return ErrLockLost
		}
		return nil
	}, nil
}

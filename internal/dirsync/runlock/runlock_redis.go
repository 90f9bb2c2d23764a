package runlock

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const lockKey = "hive:dirsync:runlock"

// releaseScript deletes the lock only when this instance still owns it, so
// a lock that expired and was re-acquired elsewhere is never released by the
// previous owner.
var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

// Redis is a cross-instance Lock backed by SET NX with a TTL. The TTL bounds
// how long a crashed instance can block other schedulers.
type Redis struct {
	client *redis.Client
	token  string
	ttl    time.Duration
}

func NewRedis(client *redis.Client, ttl time.Duration) *Redis {
	return &Redis{client: client, token: uuid.NewString(), ttl: ttl}
}

func (l *Redis) Acquire(ctx context.Context) (bool, error) {
	ok, err := l.client.SetNX(ctx, lockKey, l.token, l.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("acquire run lock: %w", err)
	}
	return ok, nil
}

func (l *Redis) Release(ctx context.Context) error {
	if err := releaseScript.Run(ctx, l.client, []string{lockKey}, l.token).Err(); err != nil {
		return fmt.Errorf("release run lock: %w", err)
	}
	return nil
}

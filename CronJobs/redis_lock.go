package CronJobs

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	redis "github.com/redis/go-redis/v9"
)

var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

// RedisLocker is a SET NX lock shared by every instance pointing at the same
// Redis. The holder's token is checked on release so an expired holder never
// deletes a newer lock.
type RedisLocker struct {
	rdb *redis.Client
}

func NewRedisLocker(url string) (*RedisLocker, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	return &RedisLocker{rdb: redis.NewClient(opt)}, nil
}

func (l *RedisLocker) TryLock(ctx context.Context, key string, ttl time.Duration) (func(), bool, error) {
	token := uuid.NewString()
	ok, err := l.rdb.SetNX(ctx, key, token, ttl).Result()
	if err != nil || !ok {
		return nil, false, err
	}
	release := func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := releaseScript.Run(ctx, l.rdb, []string{key}, token).Err(); err != nil {
			slog.Warn("release sweep lock", "key", key, "error", err)
		}
	}
	return release, true, nil
}

func (l *RedisLocker) Ping(ctx context.Context) error {
	return l.rdb.Ping(ctx).Err()
}

func (l *RedisLocker) Close() error {
	return l.rdb.Close()
}

package idlock

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"vendorkyc/pkg/platform/sentinel"
)

const lockKeyPrefix = "kyc:idlock:"

// releaseScript deletes the key only while it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// RedisLocker holds leases as SET NX PX keys. The TTL bounds how long a
// crashed worker can block resubmissions.
type RedisLocker struct {
	client *redis.Client
	hasher Hasher
	ttl    time.Duration
}

func NewRedisLocker(client *redis.Client, hasher Hasher, ttl time.Duration) *RedisLocker {
	return &RedisLocker{client: client, hasher: hasher, ttl: ttl}
}

func (l *RedisLocker) Acquire(ctx context.Context, idNumber, owner string) (Lease, error) {
	key := lockKeyPrefix + l.hasher.Key(idNumber)
	ok, err := l.client.SetNX(ctx, key, owner, l.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: acquire id lock: %v", sentinel.ErrUnavailable, err)
	}
	if !ok {
		// a retry by the same owner re-enters its own lease
		current, err := l.client.Get(ctx, key).Result()
		if err == nil && current == owner {
			if err := l.client.PExpire(ctx, key, l.ttl).Err(); err != nil {
				return nil, fmt.Errorf("%w: extend id lock: %v", sentinel.ErrUnavailable, err)
			}
			return &redisLease{client: l.client, key: key, owner: owner}, nil
		}
		return nil, sentinel.ErrLocked
	}
	return &redisLease{client: l.client, key: key, owner: owner}, nil
}

type redisLease struct {
	client *redis.Client
	key    string
	owner  string
}

func (r *redisLease) Release(ctx context.Context) error {
	return releaseScript.Run(ctx, r.client, []string{r.key}, r.owner).Err()
}

package checkout

import (
	"context"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const lockTTL = 30 * time.Second

// Locker serializes checkout attempts per buyer so a double-submitted
// cart cannot open two payment sessions. With no Redis configured it
// degrades to a no-op; the reconciliation layer stays correct either way.
type Locker struct {
	client *redis.Client
}

func NewLocker(client *redis.Client) *Locker {
	return &Locker{client: client}
}

// releaseScript deletes the lock only when the token still matches, so an
// expired lock taken over by another request is never released by us.
var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

func lockKey(userID snowflake.ID) string {
	return fmt.Sprintf("coursepay:checkout:lock:%d", userID)
}

func (l *Locker) Acquire(ctx context.Context, userID snowflake.ID) (string, bool, error) {
	if l.client == nil {
		return "", true, nil
	}
	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, lockKey(userID), token, lockTTL).Result()
	if err != nil {
		return "", false, err
	}
	return token, ok, nil
}

func (l *Locker) Release(ctx context.Context, userID snowflake.ID, token string) {
	if l.client == nil || token == "" {
		return
	}
	_ = releaseScript.Run(ctx, l.client, []string{lockKey(userID)}, token).Err()
}

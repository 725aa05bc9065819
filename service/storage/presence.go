package storage

import (
	"context"
	"time"

	redisx "PRelay/service/storage/redis"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

// Presence mirror in redis. The in-process registry is authoritative for
// broadcasts; this keyspace only gives ops tooling and other services a
// view of who is connected, with a TTL so entries cannot outlive a dead
// gateway.
//
// presence key: im:presence:<user> -> SET of connection ids

func presenceKey(user string) string { return "im:presence:" + user }

// ConnOnline records one live connection for the user and renews the TTL.
func ConnOnline(ctx context.Context, user, connID string, ttl time.Duration) error {
	rdb, err := redisx.GetClient()
	if err != nil {
		return err
	}
	pipe := rdb.TxPipeline()
	pipe.SAdd(ctx, presenceKey(user), connID)
	pipe.Expire(ctx, presenceKey(user), ttl)
	_, err = pipe.Exec(ctx)
	return errors.Wrap(err, "presence online")
}

// ConnOffline drops one connection; the key disappears with its last member.
func ConnOffline(ctx context.Context, user, connID string) error {
	rdb, err := redisx.GetClient()
	if err != nil {
		return err
	}
	if err := rdb.SRem(ctx, presenceKey(user), connID).Err(); err != nil {
		return errors.Wrap(err, "presence offline")
	}
	n, err := rdb.SCard(ctx, presenceKey(user)).Result()
	if err != nil {
		return errors.Wrap(err, "presence card")
	}
	if n == 0 {
		return errors.Wrap(rdb.Del(ctx, presenceKey(user)).Err(), "presence del")
	}
	return nil
}

// PresenceLookup reports whether the user has at least one mirrored connection.
func PresenceLookup(ctx context.Context, user string) (bool, error) {
	rdb, err := redisx.GetClient()
	if err != nil {
		return false, err
	}
	n, err := rdb.SCard(ctx, presenceKey(user)).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

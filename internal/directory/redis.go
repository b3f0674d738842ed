package directory

import (
	"context"
	"fmt"
	"strings"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/peersignal/relay/internal/core"
	"github.com/peersignal/relay/internal/domain"
)

const (
	roomKeyPrefix = "room:"
	roomKeySuffix = ":conns"
	connKeyPrefix = "conn:"
	connKeySuffix = ":rooms"
)

func roomKey(room domain.RoomID) string { return roomKeyPrefix + string(room) + roomKeySuffix }
func connKey(conn domain.ConnID) string { return connKeyPrefix + string(conn) + connKeySuffix }

// Redis keeps membership in Redis sets so multiple relay instances can share
// one directory. Both sides of the index are written in a single pipeline.
type Redis struct {
	rdb *redis.Client
}

// NewRedis connects and verifies connectivity.
func NewRedis(ctx context.Context, addr string, db int) (*Redis, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr: addr,
		DB:   db,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	log.Info().Str("module", "directory.redis").Str("addr", addr).Msg("connected")
	return &Redis{rdb: rdb}, nil
}

func (r *Redis) AddMember(ctx context.Context, room domain.RoomID, conn domain.ConnID) error {
	pipe := r.rdb.TxPipeline()
	pipe.SAdd(ctx, roomKey(room), string(conn))
	pipe.SAdd(ctx, connKey(conn), string(room))
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("add member: %w", err)
	}
	return nil
}

func (r *Redis) RemoveMember(ctx context.Context, room domain.RoomID, conn domain.ConnID) error {
	pipe := r.rdb.TxPipeline()
	pipe.SRem(ctx, roomKey(room), string(conn))
	pipe.SRem(ctx, connKey(conn), string(room))
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("remove member: %w", err)
	}
	return nil
}

func (r *Redis) Members(ctx context.Context, room domain.RoomID) ([]domain.ConnID, error) {
	vals, err := r.rdb.SMembers(ctx, roomKey(room)).Result()
	if err != nil {
		return nil, fmt.Errorf("members: %w", err)
	}
	out := make([]domain.ConnID, 0, len(vals))
	for _, v := range vals {
		out = append(out, domain.ConnID(v))
	}
	return out, nil
}

func (r *Redis) RoomsContaining(ctx context.Context, conn domain.ConnID) ([]domain.RoomID, error) {
	vals, err := r.rdb.SMembers(ctx, connKey(conn)).Result()
	if err != nil {
		return nil, fmt.Errorf("rooms containing: %w", err)
	}
	out := make([]domain.RoomID, 0, len(vals))
	for _, v := range vals {
		out = append(out, domain.RoomID(v))
	}
	return out, nil
}

func (r *Redis) Rooms(ctx context.Context) ([]core.RoomInfo, error) {
	var (
		out    []core.RoomInfo
		cursor uint64
	)
	for {
		keys, next, err := r.rdb.Scan(ctx, cursor, roomKeyPrefix+"*"+roomKeySuffix, 100).Result()
		if err != nil {
			return nil, fmt.Errorf("scan rooms: %w", err)
		}
		for _, key := range keys {
			n, err := r.rdb.SCard(ctx, key).Result()
			if err != nil {
				return nil, fmt.Errorf("scard %s: %w", key, err)
			}
			id := strings.TrimSuffix(strings.TrimPrefix(key, roomKeyPrefix), roomKeySuffix)
			out = append(out, core.RoomInfo{ID: domain.RoomID(id), MemberCount: int(n)})
		}
		cursor = next
		if cursor == 0 {
			break
		}
	}
	return out, nil
}

// Close shuts down the redis connection.
func (r *Redis) Close() error { return r.rdb.Close() }

// Package redislock serializes batch sync runs across operators with a Redis key per
// environment.
package redislock

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/ngm9/Utkrusht-task-sub000/internal/platform/logger"
)

// ErrHeld is returned by Acquire when another holder owns the key.
var ErrHeld = errors.New("sync lock held by another operator")

const DefaultTTL = 30 * time.Minute

// Locker guards one named critical section. The returned release func is safe to call once.
type Locker interface {
	Acquire(ctx context.Context, name string) (release func(), err error)
}

// Nop never blocks. Used when SYNC_LOCK_REDIS_URL is not configured.
type Nop struct{}

func (Nop) Acquire(ctx context.Context, name string) (func(), error) { return func() {}, nil }

var releaseScript = goredis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

type Lock struct {
	log    *logger.Logger
	rdb    *goredis.Client
	prefix string
	ttl    time.Duration
}

// New connects to url (redis:// or rediss://) and pings it. An empty url returns Nop.
func New(ctx context.Context, log *logger.Logger, url string, ttl time.Duration) (Locker, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	url = strings.TrimSpace(url)
	if url == "" {
		log.Warn("SYNC_LOCK_REDIS_URL not set; sync runs assume a single operator")
		return Nop{}, nil
	}
	opts, err := goredis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	opts.DialTimeout = 5 * time.Second
	rdb := goredis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Lock{
		log:    log.With("service", "RedisSyncLock"),
		rdb:    rdb,
		prefix: "taskpipeline:sync:",
		ttl:    ttl,
	}, nil
}

func (l *Lock) Acquire(ctx context.Context, name string) (func(), error) {
	key := l.prefix + name
	token, err := newToken()
	if err != nil {
		return nil, err
	}
	ok, err := l.rdb.SetNX(ctx, key, token, l.ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("acquire %s: %w", key, err)
	}
	if !ok {
		holder, _ := l.rdb.PTTL(ctx, key).Result()
		return nil, fmt.Errorf("%w: %s (expires in %s)", ErrHeld, name, holder.Round(time.Second))
	}
	l.log.Info("sync lock acquired", "key", key, "ttl", l.ttl.String())

	released := false
	return func() {
		if released {
			return
		}
		released = true
		// The caller's ctx may already be cancelled.
		relCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := releaseScript.Run(relCtx, l.rdb, []string{key}, token).Err(); err != nil {
			l.log.Warn("sync lock release failed", "key", key, "error", err)
			return
		}
		l.log.Info("sync lock released", "key", key)
	}, nil
}

func (l *Lock) Close() error { return l.rdb.Close() }

func newToken() (string, error) {
	var b [16]byte
	if _, err := rand.Read(b[:]); err != nil {
		return "", err
	}
	return hex.EncodeToString(b[:]), nil
}

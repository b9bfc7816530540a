package kv

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

// GET и SET в одном скрипте, чтобы сравнение и запись были атомарны на стороне Redis.
var casScript = redis.NewScript(`
local cur = redis.call('GET', KEYS[1])
if ARGV[1] == '1' then
	if cur then
		return 0
	end
elseif cur ~= ARGV[2] then
	return 0
end
redis.call('SET', KEYS[1], ARGV[3])
return 1
`)

// Redis implements Store on top of a go-redis client.
type Redis struct {
	client *redis.Client
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

func NewRedisClient(cfg RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
}

func NewRedis(client *redis.Client) *Redis {
	return &Redis{client: client}
}

func (r *Redis) Get(ctx context.Context, key string) ([]byte, error) {
	val, err := r.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, unavailable("kv.Redis.Get", err)
	}
	return val, nil
}

func (r *Redis) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := r.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return unavailable("kv.Redis.Set", err)
	}
	return nil
}

func (r *Redis) CompareAndSwap(ctx context.Context, key string, prev, next []byte) (bool, error) {
	absent := "0"
	if prev == nil {
		absent = "1"
	}
	n, err := casScript.Run(ctx, r.client, []string{key}, absent, prev, next).Int64()
	if err != nil {
		return false, unavailable("kv.Redis.CompareAndSwap", err)
	}
	return n == 1, nil
}

func (r *Redis) Ping(ctx context.Context) error {
	if err := r.client.Ping(ctx).Err(); err != nil {
		return unavailable("kv.Redis.Ping", err)
	}
	return nil
}

func (r *Redis) Close() error {
	return r.client.Close()
}

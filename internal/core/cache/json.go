package cache

import (
	"context"
	"encoding/json"
	"time"
)

// GetOrLoadJSON 以 JSON 形式缓存 load 的结果。
// c 为 nil（未配置 redis）时直接回源；缓存内容无法解码时删掉重新加载。
func GetOrLoadJSON[T any](
	c *Cache,
	ctx context.Context,
	key string,
	ttl time.Duration,
	load func(ctx context.Context) (*T, error),
) (*T, error) {
	if c == nil {
		return load(ctx)
	}
	fill := func(ctx context.Context) ([]byte, error) {
		v, err := load(ctx)
		if err != nil {
			return nil, err
		}
		return json.Marshal(v)
	}

	b, err := c.GetOrLoad(ctx, key, ttl, fill)
	if err != nil {
		return nil, err
	}
	out, err := decodeJSON[T](b)
	if err == nil {
		return out, nil
	}
	// 结构变更后旧条目可能解不开
	_ = c.Invalidate(ctx, key)
	if b, err = c.GetOrLoad(ctx, key, ttl, fill); err != nil {
		return nil, err
	}
	return decodeJSON[T](b)
}

func decodeJSON[T any](b []byte) (*T, error) {
	if string(b) == "null" {
		return nil, nil
	}
	var out T
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

package redis

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"shopfloor/backend/config"
)

// Client Redis 客户端封装
// 当前用于排产写锁与接口限流；后续可扩展缓存等场景
type Client struct {
	rdb    *goredis.Client
	logger *zap.Logger
}

// NewClient 创建 Redis 连接并执行 Ping 健康检查
func NewClient(cfg *config.RedisConfig, logger *zap.Logger) (*Client, error) {
	rdb := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("Redis 连接失败: %w", err)
	}

	logger.Info("Redis 连接成功", zap.String("addr", cfg.Addr))

	return &Client{rdb: rdb, logger: logger}, nil
}

// ── 排产写锁 ──
//
// 同一订单的排产是对整张排程的破坏性替换，跨实例部署时
// 依赖 Redis SETNX 保证同一订单同一时刻只有一个生成请求在执行。

const generationLockPrefix = "schedule:genlock:"

// AcquireGenerationLock 尝试获取订单排产锁，返回是否获取成功
func (c *Client) AcquireGenerationLock(ctx context.Context, orderID string, ttl time.Duration) (bool, error) {
	return c.rdb.SetNX(ctx, generationLockPrefix+orderID, "1", ttl).Result()
}

// ReleaseGenerationLock 释放订单排产锁
func (c *Client) ReleaseGenerationLock(ctx context.Context, orderID string) error {
	return c.rdb.Del(ctx, generationLockPrefix+orderID).Err()
}

// ── 接口限流 ──

// CheckRateLimit 固定窗口限流：窗口内首个请求创建计数键并设置过期
func (c *Client) CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	count, err := c.rdb.Incr(ctx, key).Result()
	if err != nil {
		return false, err
	}
	if count == 1 {
		if err := c.rdb.Expire(ctx, key, window).Err(); err != nil {
			return false, err
		}
	}
	return count <= int64(limit), nil
}

// Close 关闭 Redis 连接
func (c *Client) Close() error {
	return c.rdb.Close()
}

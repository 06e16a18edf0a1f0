package container

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"tradeguard/internal/application/port"
	"tradeguard/internal/infrastructure/config"
	"tradeguard/internal/infrastructure/storage/composite"
	"tradeguard/internal/infrastructure/storage/memory"
	pgrepo "tradeguard/internal/infrastructure/storage/postgres"
	redisrepo "tradeguard/internal/infrastructure/storage/redis"
	sqliterepo "tradeguard/internal/infrastructure/storage/sqlite"
)

// Container 存储层依赖：一个主仓储 + 可选的 Redis 事件广播
type Container struct {
	cfg         *config.Config
	repo        port.Repository
	redisClient *redis.Client
	redisPub    *redisrepo.Publisher
	publisher   port.EventPublisher
	closeOnce   sync.Once
	closerChain []func() error
}

// New 创建新的容器实例
func New(cfg *config.Config) (*Container, error) {
	c := &Container{
		cfg:         cfg,
		closerChain: make([]func() error, 0),
	}

	if err := c.initStorage(); err != nil {
		// 清理已初始化的资源
		_ = c.Close()
		return nil, err
	}
	return c, nil
}

// initStorage 主仓储三选一（Postgres > SQLite > 内存），Redis 只做广播
func (c *Container) initStorage() error {
	switch {
	case c.cfg.Storage.Postgres.Enabled:
		if err := c.initPostgres(); err != nil {
			return fmt.Errorf("postgres init failed: %w", err)
		}
	case c.cfg.Storage.SQLite.Enabled:
		if err := c.initSQLite(); err != nil {
			return fmt.Errorf("sqlite init failed: %w", err)
		}
	default:
		c.repo = memory.New()
		log.Warn().Msg("no database enabled, using in-memory storage")
	}

	if c.cfg.Storage.Redis.Enabled {
		if err := c.initRedis(); err != nil {
			return fmt.Errorf("redis init failed: %w", err)
		}
	}

	if c.redisPub != nil {
		c.publisher = composite.New(c.repo, c.redisPub)
	} else {
		c.publisher = c.repo
	}
	return nil
}

// initRedis 初始化 Redis 连接
func (c *Container) initRedis() error {
	rc := c.cfg.Storage.Redis
	rdb := redis.NewClient(&redis.Options{
		Addr:     rc.Addr,
		Password: rc.Password,
		DB:       rc.DB,
	})

	// 测试连接
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return fmt.Errorf("redis ping failed: %w", err)
	}

	c.redisClient = rdb
	c.redisPub = redisrepo.New(rdb, rc.Prefix, c.cfg.RedisTTL(), rc.EventStream, rc.EventChannel)

	// 注册关闭回调
	c.closerChain = append(c.closerChain, func() error {
		log.Info().Msg("closing redis connection")
		return rdb.Close()
	})

	log.Info().
		Str("addr", rc.Addr).
		Int("db", rc.DB).
		Msg("redis initialized")

	return nil
}

// initSQLite 初始化 SQLite 数据库
func (c *Container) initSQLite() error {
	repo, err := sqliterepo.New(c.cfg.Storage.SQLite.Path)
	if err != nil {
		return err
	}

	c.repo = repo
	c.closerChain = append(c.closerChain, func() error {
		log.Info().Msg("closing sqlite connection")
		return repo.Close()
	})

	log.Info().
		Str("path", c.cfg.Storage.SQLite.Path).
		Msg("sqlite initialized")

	return nil
}

func (c *Container) initPostgres() error {
	repo, err := pgrepo.New(c.cfg.Storage.Postgres.DSN)
	if err != nil {
		return err
	}

	c.repo = repo
	c.closerChain = append(c.closerChain, func() error {
		log.Info().Msg("closing postgres connection")
		return repo.Close()
	})

	log.Info().Msg("postgres initialized")
	return nil
}

// Config 获取配置
func (c *Container) Config() *config.Config {
	return c.cfg
}

// Repository 主仓储
func (c *Container) Repository() port.Repository {
	return c.repo
}

// Publisher 事件写出端：主仓储，启用 Redis 时同时广播
func (c *Container) Publisher() port.EventPublisher {
	return c.publisher
}

// RedisClient 未启用时为 nil
func (c *Container) RedisClient() *redis.Client {
	return c.redisClient
}

// Close 关闭所有资源（按后进先出顺序）
func (c *Container) Close() error {
	var err error
	c.closeOnce.Do(func() {
		for i := len(c.closerChain) - 1; i >= 0; i-- {
			if e := c.closerChain[i](); e != nil {
				log.Error().Err(e).Msg("error closing resource")
				if err == nil {
					err = e
				}
			}
		}
		log.Info().Msg("container closed")
	})
	return err
}

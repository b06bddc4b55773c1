package runstore

import (
	"context"
	"fmt"
	"io"
	"time"

	"go.uber.org/zap"

	"github.com/NisargKadam/mental-wellness-agent/config"
	"github.com/NisargKadam/mental-wellness-agent/internal/cache"
	"github.com/NisargKadam/mental-wellness-agent/internal/database"
	"github.com/NisargKadam/mental-wellness-agent/workflow"
)

// 支持的存储后端
const (
	BackendNone   = "none"
	BackendMemory = "memory"
	BackendRedis  = "redis"
	BackendSQL    = "sql"
)

// Observer 接收存储操作的耗时与结果，通常由 metrics.Collector 实现
type Observer interface {
	RecordHistoryOp(backend, operation string, err error, duration time.Duration)
}

// Store 是带关闭能力的运行记录存储
type Store interface {
	workflow.HistoryStore
	io.Closer
	// Ping 检查后端是否可用，用于就绪探针
	Ping(ctx context.Context) error
}

// Option 配置存储
type Option func(*options)

type options struct {
	observer Observer
	logger   *zap.Logger
}

// WithObserver 设置操作观察者
func WithObserver(o Observer) Option {
	return func(opts *options) { opts.observer = o }
}

// WithLogger 设置日志记录器
func WithLogger(logger *zap.Logger) Option {
	return func(opts *options) {
		if logger != nil {
			opts.logger = logger
		}
	}
}

func applyOptions(opts []Option) options {
	o := options{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// memoryStore 为内存存储补充 Close
type memoryStore struct {
	*workflow.MemoryHistoryStore
}

func (memoryStore) Close() error { return nil }

func (memoryStore) Ping(context.Context) error { return nil }

// New 按配置创建运行记录存储。backend 为 none 时返回 nil
func New(ctx context.Context, cfg *config.Config, opts ...Option) (Store, error) {
	o := applyOptions(opts)
	hc := cfg.History

	switch hc.Backend {
	case BackendNone:
		return nil, nil
	case "", BackendMemory:
		return memoryStore{workflow.NewMemoryHistoryStore(hc.MaxRecords)}, nil
	case BackendRedis:
		mgr, err := cache.NewManager(cache.ConfigFrom(cfg.Redis, hc.TTL), o.logger)
		if err != nil {
			return nil, err
		}
		return NewRedisStore(mgr, hc.KeyPrefix, hc.MaxRecords, hc.TTL, opts...), nil
	case BackendSQL:
		var poolOpts []database.PoolOption
		if so, ok := o.observer.(database.StatsObserver); ok {
			poolOpts = append(poolOpts, database.WithStatsObserver(so))
		}
		pool, err := database.Open(cfg.Database, o.logger, poolOpts...)
		if err != nil {
			return nil, err
		}
		store, err := NewSQLStore(ctx, pool, hc.MaxRecords, opts...)
		if err != nil {
			_ = pool.Close()
			return nil, err
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown history backend %q", hc.Backend)
	}
}

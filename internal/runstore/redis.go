package runstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/NisargKadam/mental-wellness-agent/internal/cache"
	"github.com/NisargKadam/mental-wellness-agent/workflow"
)

// =============================================================================
// 🧠 Redis 运行记录存储
// =============================================================================

// RedisStore 将运行记录以 JSON 保存在 Redis 中，并用有序集合按开始时间建立索引
type RedisStore struct {
	mgr      *cache.Manager
	prefix   string
	max      int
	ttl      time.Duration
	observer Observer
	logger   *zap.Logger
}

// NewRedisStore 创建 Redis 运行记录存储。max 为 0 表示不限制记录数
func NewRedisStore(mgr *cache.Manager, prefix string, max int, ttl time.Duration, opts ...Option) *RedisStore {
	o := applyOptions(opts)
	return &RedisStore{
		mgr:      mgr,
		prefix:   prefix,
		max:      max,
		ttl:      ttl,
		observer: o.observer,
		logger:   o.logger.With(zap.String("component", "runstore_redis")),
	}
}

func (s *RedisStore) key(runID string) string { return s.prefix + runID }

func (s *RedisStore) index() string { return s.prefix + "index" }

// Save 保存运行记录并维护索引
func (s *RedisStore) Save(ctx context.Context, rec *workflow.RunRecord) (err error) {
	defer s.observe("save", time.Now(), &err)

	if err := s.mgr.SetJSON(ctx, s.key(rec.RunID), rec, s.ttl); err != nil {
		return fmt.Errorf("save run %s: %w", rec.RunID, err)
	}
	score := float64(rec.StartedAt.UnixNano())
	if err := s.mgr.IndexAdd(ctx, s.index(), rec.RunID, score); err != nil {
		return fmt.Errorf("index run %s: %w", rec.RunID, err)
	}

	if s.max > 0 {
		stale, err := s.mgr.IndexTrim(ctx, s.index(), s.max)
		if err != nil {
			return fmt.Errorf("trim run index: %w", err)
		}
		if len(stale) > 0 {
			keys := make([]string, len(stale))
			for i, id := range stale {
				keys[i] = s.key(id)
			}
			if err := s.mgr.Delete(ctx, keys...); err != nil {
				s.logger.Warn("failed to delete evicted runs", zap.Strings("run_ids", stale), zap.Error(err))
			}
		}
	}
	return nil
}

// Get 按运行 ID 读取记录
func (s *RedisStore) Get(ctx context.Context, runID string) (_ *workflow.RunRecord, err error) {
	defer s.observe("get", time.Now(), &err)

	var rec workflow.RunRecord
	if err := s.mgr.GetJSON(ctx, s.key(runID), &rec); err != nil {
		if cache.IsCacheMiss(err) {
			return nil, workflow.ErrRunNotFound
		}
		return nil, fmt.Errorf("get run %s: %w", runID, err)
	}
	return &rec, nil
}

// List 按开始时间倒序返回匹配的记录。已过期的记录会从索引中清除
func (s *RedisStore) List(ctx context.Context, filter workflow.HistoryFilter) (_ []*workflow.RunRecord, err error) {
	defer s.observe("list", time.Now(), &err)

	ids, err := s.mgr.IndexNewest(ctx, s.index(), 0)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}

	var (
		out     []*workflow.RunRecord
		expired []string
	)
	for _, id := range ids {
		var rec workflow.RunRecord
		if err := s.mgr.GetJSON(ctx, s.key(id), &rec); err != nil {
			if cache.IsCacheMiss(err) {
				expired = append(expired, id)
				continue
			}
			return nil, fmt.Errorf("list runs: %w", err)
		}
		if !filter.Match(&rec) {
			continue
		}
		out = append(out, &rec)
		if filter.Limit > 0 && len(out) >= filter.Limit {
			break
		}
	}

	if len(expired) > 0 {
		if err := s.mgr.IndexRemove(ctx, s.index(), expired...); err != nil {
			s.logger.Warn("failed to prune expired runs", zap.Int("count", len(expired)), zap.Error(err))
		}
	}
	return out, nil
}

func (s *RedisStore) observe(op string, start time.Time, err *error) {
	if s.observer == nil {
		return
	}
	var opErr error
	if err != nil && *err != nil && !errors.Is(*err, workflow.ErrRunNotFound) {
		opErr = *err
	}
	s.observer.RecordHistoryOp(BackendRedis, op, opErr, time.Since(start))
}

// Close 关闭底层 Redis 连接
// Ping 检查 Redis 连接
func (s *RedisStore) Ping(ctx context.Context) error { return s.mgr.Ping(ctx) }

func (s *RedisStore) Close() error { return s.mgr.Close() }

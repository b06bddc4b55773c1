package runstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/NisargKadam/mental-wellness-agent/internal/database"
	"github.com/NisargKadam/mental-wellness-agent/workflow"
)

// =============================================================================
// 🗄️ SQL 运行记录存储
// =============================================================================

// runRow 是运行记录的表结构，节点轨迹与最终状态以 JSON 文本保存
type runRow struct {
	RunID      string    `gorm:"column:run_id;primaryKey;size:64"`
	Graph      string    `gorm:"column:graph;size:128;index:idx_runs_graph_started,priority:1"`
	Status     string    `gorm:"column:status;size:32;index"`
	Error      string    `gorm:"column:error;type:text"`
	Steps      int       `gorm:"column:steps"`
	StartedAt  time.Time `gorm:"column:started_at;index:idx_runs_graph_started,priority:2"`
	FinishedAt time.Time `gorm:"column:finished_at"`
	DurationNS int64     `gorm:"column:duration_ns"`
	Nodes      string    `gorm:"column:nodes;type:text"`
	State      string    `gorm:"column:state;type:text"`
}

func (runRow) TableName() string { return "workflow_runs" }

func toRow(rec *workflow.RunRecord) (*runRow, error) {
	nodes, err := json.Marshal(rec.Nodes)
	if err != nil {
		return nil, fmt.Errorf("encode nodes: %w", err)
	}
	state, err := json.Marshal(rec.State)
	if err != nil {
		return nil, fmt.Errorf("encode state: %w", err)
	}
	return &runRow{
		RunID:      rec.RunID,
		Graph:      rec.Graph,
		Status:     string(rec.Status),
		Error:      rec.Error,
		Steps:      rec.Steps,
		StartedAt:  rec.StartedAt.UTC(),
		FinishedAt: rec.FinishedAt.UTC(),
		DurationNS: int64(rec.Duration),
		Nodes:      string(nodes),
		State:      string(state),
	}, nil
}

func (r *runRow) record() (*workflow.RunRecord, error) {
	rec := &workflow.RunRecord{
		RunID:      r.RunID,
		Graph:      r.Graph,
		Status:     workflow.RunStatus(r.Status),
		Error:      r.Error,
		Steps:      r.Steps,
		StartedAt:  r.StartedAt,
		FinishedAt: r.FinishedAt,
		Duration:   time.Duration(r.DurationNS),
	}
	if r.Nodes != "" {
		if err := json.Unmarshal([]byte(r.Nodes), &rec.Nodes); err != nil {
			return nil, fmt.Errorf("decode nodes of run %s: %w", r.RunID, err)
		}
	}
	if r.State != "" && r.State != "null" {
		if err := json.Unmarshal([]byte(r.State), &rec.State); err != nil {
			return nil, fmt.Errorf("decode state of run %s: %w", r.RunID, err)
		}
	}
	return rec, nil
}

// SQLStore 将运行记录保存在关系数据库中
type SQLStore struct {
	pool     *database.PoolManager
	max      int
	observer Observer
	logger   *zap.Logger
}

// NewSQLStore 创建 SQL 运行记录存储并迁移表结构。max 为 0 表示不限制记录数
func NewSQLStore(ctx context.Context, pool *database.PoolManager, max int, opts ...Option) (*SQLStore, error) {
	o := applyOptions(opts)
	if err := pool.DB().WithContext(ctx).AutoMigrate(&runRow{}); err != nil {
		return nil, fmt.Errorf("migrate workflow_runs: %w", err)
	}
	return &SQLStore{
		pool:     pool,
		max:      max,
		observer: o.observer,
		logger:   o.logger.With(zap.String("component", "runstore_sql")),
	}, nil
}

// Save 插入或覆盖运行记录，超出容量时删除最旧的记录
func (s *SQLStore) Save(ctx context.Context, rec *workflow.RunRecord) (err error) {
	defer s.observe("save", time.Now(), &err)

	row, err := toRow(rec)
	if err != nil {
		return err
	}
	return s.pool.WithTransactionRetry(ctx, 3, func(tx *gorm.DB) error {
		if err := tx.Save(row).Error; err != nil {
			return fmt.Errorf("save run %s: %w", rec.RunID, err)
		}
		if s.max <= 0 {
			return nil
		}
		var keep []string
		if err := tx.Model(&runRow{}).
			Order("started_at DESC").
			Limit(s.max).
			Pluck("run_id", &keep).Error; err != nil {
			return fmt.Errorf("select retained runs: %w", err)
		}
		if len(keep) < s.max {
			return nil
		}
		return tx.Where("run_id NOT IN ?", keep).Delete(&runRow{}).Error
	})
}

// Get 按运行 ID 读取记录
func (s *SQLStore) Get(ctx context.Context, runID string) (_ *workflow.RunRecord, err error) {
	defer s.observe("get", time.Now(), &err)

	var row runRow
	err = s.pool.DB().WithContext(ctx).Where("run_id = ?", runID).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, workflow.ErrRunNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get run %s: %w", runID, err)
	}
	return row.record()
}

// List 按开始时间倒序返回匹配的记录
func (s *SQLStore) List(ctx context.Context, filter workflow.HistoryFilter) (_ []*workflow.RunRecord, err error) {
	defer s.observe("list", time.Now(), &err)

	q := s.pool.DB().WithContext(ctx).Model(&runRow{})
	if filter.Graph != "" {
		q = q.Where("graph = ?", filter.Graph)
	}
	if filter.Status != "" {
		q = q.Where("status = ?", string(filter.Status))
	}
	if !filter.Since.IsZero() {
		q = q.Where("started_at >= ?", filter.Since.UTC())
	}
	if !filter.Until.IsZero() {
		q = q.Where("started_at <= ?", filter.Until.UTC())
	}
	if filter.Limit > 0 {
		q = q.Limit(filter.Limit)
	}

	var rows []runRow
	if err := q.Order("started_at DESC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}

	out := make([]*workflow.RunRecord, 0, len(rows))
	for i := range rows {
		rec, err := rows[i].record()
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

func (s *SQLStore) observe(op string, start time.Time, err *error) {
	if s.observer == nil {
		return
	}
	var opErr error
	if err != nil && *err != nil && !errors.Is(*err, workflow.ErrRunNotFound) {
		opErr = *err
	}
	s.observer.RecordHistoryOp(BackendSQL, op, opErr, time.Since(start))
}

// Close 关闭数据库连接池
// Ping 检查数据库连接
func (s *SQLStore) Ping(ctx context.Context) error { return s.pool.Ping(ctx) }

func (s *SQLStore) Close() error { return s.pool.Close() }

package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/NisargKadam/mental-wellness-agent/api"
	"github.com/NisargKadam/mental-wellness-agent/types"
	"github.com/NisargKadam/mental-wellness-agent/workflow"
)

// =============================================================================
// 📜 运行历史 Handler
// =============================================================================

const (
	defaultRunLimit = 20
	maxRunLimit     = 200
)

// RunsHandler 运行历史查询处理器
type RunsHandler struct {
	store  workflow.HistoryStore
	logger *zap.Logger
}

// NewRunsHandler 创建运行历史处理器
func NewRunsHandler(store workflow.HistoryStore, logger *zap.Logger) *RunsHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RunsHandler{
		store:  store,
		logger: logger.With(zap.String("handler", "runs")),
	}
}

// HandleList 列出运行记录
// @Summary 列出运行记录
// @Description 按开始时间倒序返回运行记录
// @Tags runs
// @Produce json
// @Param graph query string false "图名称"
// @Param status query string false "运行状态"
// @Param since query string false "RFC3339 起始时间"
// @Param until query string false "RFC3339 截止时间"
// @Param limit query int false "最大条数 (1-200)"
// @Success 200 {object} Response{data=api.RunListResponse} "运行记录"
// @Failure 400 {object} Response "无效参数"
// @Security ApiKeyAuth
// @Router /v1/runs [get]
func (h *RunsHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	filter, apiErr := parseFilter(r)
	if apiErr != nil {
		WriteError(w, apiErr, h.logger)
		return
	}

	runs, err := h.store.List(r.Context(), filter)
	if err != nil {
		WriteError(w, types.NewError(types.ErrInternalError, "failed to list runs").WithCause(err), h.logger)
		return
	}
	if runs == nil {
		runs = []*workflow.RunRecord{}
	}

	WriteSuccess(w, r, api.RunListResponse{Runs: runs, Count: len(runs)})
}

// HandleGet 查询单次运行记录
// @Summary 查询运行记录
// @Tags runs
// @Produce json
// @Param id path string true "运行 ID"
// @Success 200 {object} Response{data=workflow.RunRecord} "运行记录"
// @Failure 404 {object} Response "运行不存在"
// @Security ApiKeyAuth
// @Router /v1/runs/{id} [get]
func (h *RunsHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		WriteErrorMessage(w, http.StatusBadRequest, types.ErrInvalidRequest, "run id is required", h.logger)
		return
	}

	rec, err := h.store.Get(r.Context(), id)
	if errors.Is(err, workflow.ErrRunNotFound) {
		WriteErrorMessage(w, http.StatusNotFound, types.ErrRunNotFound, "run "+id+" not found", h.logger)
		return
	}
	if err != nil {
		WriteError(w, types.NewError(types.ErrInternalError, "failed to load run").WithCause(err), h.logger)
		return
	}

	WriteSuccess(w, r, rec)
}

func parseFilter(r *http.Request) (workflow.HistoryFilter, *types.Error) {
	q := r.URL.Query()
	filter := workflow.HistoryFilter{
		Graph:  q.Get("graph"),
		Status: workflow.RunStatus(q.Get("status")),
		Limit:  defaultRunLimit,
	}

	invalid := func(msg string) *types.Error {
		return types.NewError(types.ErrInvalidRequest, msg).WithHTTPStatus(http.StatusBadRequest)
	}

	if v := q.Get("since"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return filter, invalid("since must be an RFC3339 timestamp")
		}
		filter.Since = t
	}
	if v := q.Get("until"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return filter, invalid("until must be an RFC3339 timestamp")
		}
		filter.Until = t
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > maxRunLimit {
			return filter, invalid("limit must be between 1 and 200")
		}
		filter.Limit = n
	}
	return filter, nil
}

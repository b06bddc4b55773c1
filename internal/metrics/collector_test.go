package metrics

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/NisargKadam/mental-wellness-agent/types"
	"github.com/NisargKadam/mental-wellness-agent/workflow"
)

var collectorNamespaceSeq uint64

func nextTestNamespace() string {
	seq := atomic.AddUint64(&collectorNamespaceSeq, 1)
	return fmt.Sprintf("test_%d", seq)
}

// =============================================================================
// 🧪 Collector 测试
// =============================================================================

func TestNewCollector(t *testing.T) {
	collector := NewCollector(nextTestNamespace(), zap.NewNop())

	assert.NotNil(t, collector)
	assert.NotNil(t, collector.httpRequestsTotal)
	assert.NotNil(t, collector.llmRequestsTotal)
	assert.NotNil(t, collector.workflowRunsTotal)
	assert.NotNil(t, collector.historyOpsTotal)
	assert.NotNil(t, collector.dbQueryDuration)
}

func TestCollector_RecordHTTPRequest(t *testing.T) {
	collector := NewCollector(nextTestNamespace(), zap.NewNop())

	collector.RecordHTTPRequest("GET", "/test", 200, 100*time.Millisecond, 1024, 2048)
	collector.RecordHTTPRequest("GET", "/test", 204, 50*time.Millisecond, 512, 0)
	collector.RecordHTTPRequest("POST", "/v1/respond", 503, 10*time.Millisecond, 64, 128)

	assert.Equal(t, 2.0, testutil.ToFloat64(collector.httpRequestsTotal.WithLabelValues("GET", "/test", "2xx")))
	assert.Equal(t, 1.0, testutil.ToFloat64(collector.httpRequestsTotal.WithLabelValues("POST", "/v1/respond", "5xx")))
}

func TestCollector_RecordLLMRequest(t *testing.T) {
	collector := NewCollector(nextTestNamespace(), zap.NewNop())

	collector.RecordLLMRequest("openai", "gpt-4o-mini", "planner", "success", 500*time.Millisecond,
		types.TokenUsage{PromptTokens: 100, CompletionTokens: 50, TotalTokens: 150})
	collector.RecordLLMRequest("openai", "gpt-4o-mini", "aggregator", "success", time.Second,
		types.TokenUsage{PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15})

	assert.Equal(t, 1.0, testutil.ToFloat64(collector.llmRequestsTotal.WithLabelValues("openai", "gpt-4o-mini", "planner", "success")))
	assert.Equal(t, 110.0, testutil.ToFloat64(collector.llmTokensUsed.WithLabelValues("openai", "gpt-4o-mini", "prompt")))
	assert.Equal(t, 55.0, testutil.ToFloat64(collector.llmTokensUsed.WithLabelValues("openai", "gpt-4o-mini", "completion")))
}

func TestCollector_RecordsWorkflowRuns(t *testing.T) {
	collector := NewCollector(nextTestNamespace(), zap.NewNop())

	schema := workflow.MustSchema(workflow.Replace("out"))
	g := workflow.NewGraphBuilder("metrics-test", schema).
		AddNode("a", workflow.TaskFunc(func(_ context.Context, _ workflow.Snapshot) (workflow.Update, error) {
			return workflow.Update{"out": "done"}, nil
		})).Writes("out").Done().
		AddEdge("a", workflow.End).
		SetEntry("a").
		MustBuild()

	exec := workflow.NewExecutor(workflow.WithRecorder(collector))
	res := exec.Run(context.Background(), g, "", nil)
	assert.Equal(t, workflow.RunCompleted, res.Status)

	assert.Equal(t, 1.0, testutil.ToFloat64(collector.workflowRunsTotal.WithLabelValues("metrics-test", "completed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(collector.workflowNodesTotal.WithLabelValues("metrics-test", "a", "succeeded")))
}

func TestCollector_RecordHistoryOp(t *testing.T) {
	collector := NewCollector(nextTestNamespace(), zap.NewNop())

	collector.RecordHistoryOp("redis", "save", nil, time.Millisecond)
	collector.RecordHistoryOp("redis", "get", errors.New("miss"), time.Millisecond)

	assert.Equal(t, 1.0, testutil.ToFloat64(collector.historyOpsTotal.WithLabelValues("redis", "save", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(collector.historyOpsTotal.WithLabelValues("redis", "get", "error")))
}

func TestCollector_RecordDatabase(t *testing.T) {
	collector := NewCollector(nextTestNamespace(), zap.NewNop())

	collector.RecordDBQuery("sqlite", "insert", 20*time.Millisecond)
	collector.RecordDBConnections("sqlite", 10, 5)

	assert.Greater(t, testutil.CollectAndCount(collector.dbQueryDuration), 0)
	assert.Equal(t, 10.0, testutil.ToFloat64(collector.dbConnectionsOpen.WithLabelValues("sqlite")))
	assert.Equal(t, 5.0, testutil.ToFloat64(collector.dbConnectionsIdle.WithLabelValues("sqlite")))
}

func TestCollector_ConcurrentRecording(t *testing.T) {
	collector := NewCollector(nextTestNamespace(), zap.NewNop())

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			collector.RecordHTTPRequest("GET", "/test", 200, 100*time.Millisecond, 1024, 2048)
			collector.RecordLLMRequest("openai", "gpt-4o-mini", "supervisor", "success", 500*time.Millisecond, types.TokenUsage{PromptTokens: 1})
			collector.RecordNode("g", "n", workflow.NodeSucceeded, time.Millisecond)
		}()
	}
	wg.Wait()

	assert.Equal(t, 10.0, testutil.ToFloat64(collector.httpRequestsTotal.WithLabelValues("GET", "/test", "2xx")))
	assert.Equal(t, 10.0, testutil.ToFloat64(collector.workflowNodesTotal.WithLabelValues("g", "n", "succeeded")))
}

func TestCollector_MetricsRegistration(t *testing.T) {
	registry := prometheus.NewRegistry()
	collector := NewCollector(nextTestNamespace(), zap.NewNop())

	// 已注册到默认 registry 的指标也可以注册到自定义 registry
	registry.MustRegister(collector.httpRequestsTotal)
	collector.RecordHTTPRequest("GET", "/test", 200, 100*time.Millisecond, 0, 0)

	count, err := testutil.GatherAndCount(registry)
	assert.NoError(t, err)
	assert.Equal(t, 1, count)
}

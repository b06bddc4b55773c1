package telemetry

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.uber.org/zap/zaptest"

	"github.com/NisargKadam/mental-wellness-agent/config"
	"github.com/NisargKadam/mental-wellness-agent/workflow"
)

// saveAndRestoreGlobalProviders 在测试结束时恢复全局 provider
func saveAndRestoreGlobalProviders(t *testing.T) {
	t.Helper()
	origTP := otel.GetTracerProvider()
	origMP := otel.GetMeterProvider()
	t.Cleanup(func() {
		otel.SetTracerProvider(origTP)
		otel.SetMeterProvider(origMP)
	})
}

func singleNodeGraph(t *testing.T) *workflow.Graph {
	t.Helper()
	return workflow.NewGraphBuilder("mental-wellness", workflow.MustSchema(workflow.Replace("final_output"))).
		AddNode("aggregator", workflow.TaskFunc(func(context.Context, workflow.Snapshot) (workflow.Update, error) {
			return workflow.Update{"final_output": "take a short walk"}, nil
		})).Writes("final_output").Done().
		AddEdge("aggregator", workflow.End).
		SetEntry("aggregator").
		MustBuild()
}

func TestInit_Disabled(t *testing.T) {
	saveAndRestoreGlobalProviders(t)

	tel, err := Init(context.Background(), config.TelemetryConfig{Enabled: false}, zaptest.NewLogger(t))
	require.NoError(t, err)
	require.NotNil(t, tel)

	assert.False(t, tel.Enabled())
	assert.NotNil(t, tel.Tracer)
	assert.Nil(t, tel.Recorder)
	assert.Empty(t, tel.Recorders())
	assert.NoError(t, tel.Shutdown(context.Background()))

	// 未启用时执行器仍可使用 noop tracer
	res := workflow.NewExecutor(workflow.WithTracer(tel.Tracer)).Run(context.Background(), singleNodeGraph(t), "", nil)
	require.NoError(t, res.Err)
}

func TestInit_ExportsWorkflowSpansAndMetrics(t *testing.T) {
	saveAndRestoreGlobalProviders(t)

	spans := tracetest.NewInMemoryExporter()
	reader := sdkmetric.NewManualReader()
	tel, err := Init(context.Background(),
		config.TelemetryConfig{Enabled: true, SampleRate: 1.0},
		zaptest.NewLogger(t),
		WithServiceVersion("1.2.3"),
		WithGraph("mental-wellness"),
		WithModelBackend("offline"),
		WithSpanExporter(spans),
		WithMetricReader(reader),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = tel.Shutdown(context.Background()) })

	require.True(t, tel.Enabled())
	require.NotNil(t, tel.Recorder)
	require.Len(t, tel.Recorders(), 1)

	_, tpIsSDK := otel.GetTracerProvider().(*sdktrace.TracerProvider)
	assert.True(t, tpIsSDK, "global TracerProvider should be the SDK provider")

	exec := workflow.NewExecutor(
		workflow.WithTracer(tel.Tracer),
		workflow.WithRecorder(tel.Recorders()),
	)
	res := exec.Run(context.Background(), singleNodeGraph(t), "", nil)
	require.NoError(t, res.Err)

	stubs := spans.GetSpans()
	names := make([]string, 0, len(stubs))
	for _, s := range stubs {
		names = append(names, s.Name)
	}
	assert.Contains(t, names, "workflow.run")
	assert.Contains(t, names, "workflow.node")

	require.NotEmpty(t, stubs)
	set := stubs[0].Resource.Set()
	service, ok := set.Value(semconv.ServiceNameKey)
	require.True(t, ok)
	assert.Equal(t, DefaultServiceName, service.AsString())
	version, _ := set.Value(semconv.ServiceVersionKey)
	assert.Equal(t, "1.2.3", version.AsString())
	graph, _ := set.Value(AttrGraph)
	assert.Equal(t, "mental-wellness", graph.AsString())
	backend, _ := set.Value(AttrModelBackend)
	assert.Equal(t, "offline", backend.AsString())
	assert.Equal(t, workflow.InstrumentationName, stubs[0].InstrumentationScope.Name)

	metrics := collect(t, reader)
	runs, ok := metrics["workflow.runs"].Data.(metricdata.Sum[int64])
	require.True(t, ok)
	require.Len(t, runs.DataPoints, 1)
	assert.Equal(t, int64(1), runs.DataPoints[0].Value)
	status, _ := runs.DataPoints[0].Attributes.Value(attribute.Key("workflow.status"))
	assert.Equal(t, string(workflow.RunCompleted), status.AsString())

	nodes, ok := metrics["workflow.node.executions"].Data.(metricdata.Sum[int64])
	require.True(t, ok)
	require.Len(t, nodes.DataPoints, 1)
	node, _ := nodes.DataPoints[0].Attributes.Value(attribute.Key("workflow.node"))
	assert.Equal(t, "aggregator", node.AsString())
}

func TestInit_OTLPExporters(t *testing.T) {
	saveAndRestoreGlobalProviders(t)

	tel, err := Init(context.Background(), config.TelemetryConfig{
		Enabled:      true,
		OTLPEndpoint: "localhost:4317",
		ServiceName:  "wellness-test",
		SampleRate:   0.5,
	}, zaptest.NewLogger(t))
	require.NoError(t, err)
	require.True(t, tel.Enabled())

	// 没有 collector 监听，导出可能失败，只要求按时返回且不 panic
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	assert.NotPanics(t, func() {
		_ = tel.Shutdown(ctx)
	})
}

func TestTelemetry_NilIsSafe(t *testing.T) {
	var tel *Telemetry
	assert.False(t, tel.Enabled())
	assert.Empty(t, tel.Recorders())
	assert.NoError(t, tel.Shutdown(context.Background()))
}

func TestBuildVersion(t *testing.T) {
	// 测试二进制的版本为 "(devel)"，回退为 "dev"
	assert.Equal(t, "dev", buildVersion())
}

package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/NisargKadam/mental-wellness-agent/workflow"
)

// Recorder exports workflow run and node measurements as OTel metrics. It
// implements workflow.Recorder alongside the Prometheus collector.
type Recorder struct {
	runs         metric.Int64Counter
	runDuration  metric.Float64Histogram
	nodes        metric.Int64Counter
	nodeDuration metric.Float64Histogram
}

// NewRecorder creates the workflow instruments on mp. A nil mp uses the
// global MeterProvider.
func NewRecorder(mp metric.MeterProvider) (*Recorder, error) {
	if mp == nil {
		mp = otel.GetMeterProvider()
	}
	meter := mp.Meter(workflow.InstrumentationName)

	var (
		r   Recorder
		err error
	)
	if r.runs, err = meter.Int64Counter("workflow.runs",
		metric.WithDescription("Workflow runs by terminal status"),
	); err != nil {
		return nil, err
	}
	if r.runDuration, err = meter.Float64Histogram("workflow.run.duration",
		metric.WithDescription("Workflow run duration"),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}
	if r.nodes, err = meter.Int64Counter("workflow.node.executions",
		metric.WithDescription("Workflow node executions by status"),
	); err != nil {
		return nil, err
	}
	if r.nodeDuration, err = meter.Float64Histogram("workflow.node.duration",
		metric.WithDescription("Workflow node execution duration"),
		metric.WithUnit("s"),
	); err != nil {
		return nil, err
	}
	return &r, nil
}

// RecordRun implements workflow.Recorder.
func (r *Recorder) RecordRun(graph string, status workflow.RunStatus, d time.Duration) {
	ctx := context.Background()
	attrs := metric.WithAttributes(
		attribute.String("workflow.graph", graph),
		attribute.String("workflow.status", string(status)),
	)
	r.runs.Add(ctx, 1, attrs)
	r.runDuration.Record(ctx, d.Seconds(), attrs)
}

// RecordNode implements workflow.Recorder.
func (r *Recorder) RecordNode(graph, node string, status workflow.NodeStatus, d time.Duration) {
	ctx := context.Background()
	attrs := metric.WithAttributes(
		attribute.String("workflow.graph", graph),
		attribute.String("workflow.node", node),
		attribute.String("workflow.node.status", string(status)),
	)
	r.nodes.Add(ctx, 1, attrs)
	r.nodeDuration.Record(ctx, d.Seconds(), attrs)
}

var _ workflow.Recorder = (*Recorder)(nil)

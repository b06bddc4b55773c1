// Copyright (c) AgentFlow Authors.
// Licensed under the MIT License.

/*
Package telemetry 为工作流执行器提供 OpenTelemetry 接入。

Init 按配置创建 TracerProvider 与 MeterProvider，资源上标注服务名、
版本、运行的工作流图与模型后端，并返回绑定到执行器的 Tracer 与
Recorder（workflow.Recorder 的 OTel 实现）。未启用时 Tracer 为 noop，
Recorder 为 nil，不连接任何外部服务。

	tel, err := telemetry.Init(ctx, cfg.Telemetry, logger, telemetry.WithGraph(wellness.GraphName))
	exec := workflow.NewExecutor(
		workflow.WithTracer(tel.Tracer),
		workflow.WithRecorder(tel.Recorders()),
	)
	defer tel.Shutdown(ctx)
*/
package telemetry

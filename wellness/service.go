package wellness

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/NisargKadam/mental-wellness-agent/types"
	"github.com/NisargKadam/mental-wellness-agent/workflow"
)

// Response is the outcome of one wellness request.
type Response struct {
	RunID       string                `json:"run_id"`
	Status      workflow.RunStatus    `json:"status"`
	FinalOutput FinalOutput           `json:"final_output"`
	Error       string                `json:"error,omitempty"`
	Duration    time.Duration         `json:"duration"`
	State       map[string]any        `json:"state,omitempty"`
	Trace       []workflow.TraceEntry `json:"-"`
}

// Blocked reports whether the safety gate refused the request.
func (r *Response) Blocked() bool { return r.Status == workflow.RunBlocked }

// Service answers wellness requests by running the wellness graph.
type Service struct {
	graph    *workflow.Graph
	executor *workflow.Executor
	runOpts  []workflow.RunOption
	logger   *zap.Logger
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithExecutor sets the executor that runs the graph.
func WithExecutor(e *workflow.Executor) ServiceOption {
	return func(s *Service) {
		if e != nil {
			s.executor = e
		}
	}
}

// WithRunOptions sets options applied to every run.
func WithRunOptions(opts ...workflow.RunOption) ServiceOption {
	return func(s *Service) { s.runOpts = append(s.runOpts, opts...) }
}

// WithServiceLogger sets the service logger.
func WithServiceLogger(logger *zap.Logger) ServiceOption {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewService creates a service around a built wellness graph.
func NewService(g *workflow.Graph, opts ...ServiceOption) *Service {
	s := &Service{
		graph:    g,
		executor: workflow.NewExecutor(),
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With(zap.String("component", "wellness_service"))
	return s
}

// Graph returns the graph the service runs.
func (s *Service) Graph() *workflow.Graph { return s.graph }

// Respond runs the pipeline for input. Pipeline failures never surface as
// errors: the response then carries the fallback output and the error text.
// Only an empty input is rejected.
func (s *Service) Respond(ctx context.Context, input string, opts ...workflow.RunOption) (*Response, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return nil, types.NewError(types.ErrInvalidRequest, "user_input must not be empty").WithHTTPStatus(400)
	}

	initial := workflow.Update{
		FieldUserInput: input,
		FieldMessages:  types.NewUserMessage(input),
	}
	runOpts := append(append([]workflow.RunOption(nil), s.runOpts...), opts...)
	res := s.executor.Run(ctx, s.graph, "", initial, runOpts...)

	resp := &Response{
		RunID:    res.RunID,
		Status:   res.Status,
		Duration: res.Duration(),
		State:    res.State.Values(),
		Trace:    res.Trace,
	}

	final, ok := workflow.Value[FinalOutput](res.State, FieldFinal)
	switch {
	case res.Err != nil:
		s.logger.Warn("wellness run failed, using fallback response",
			zap.String("run_id", res.RunID),
			zap.String("status", string(res.Status)),
			zap.Error(res.Err),
		)
		resp.Error = res.Err.Error()
		resp.FinalOutput = fallbackOutput()
	case !ok:
		s.logger.Warn("wellness run produced no final output, using fallback response",
			zap.String("run_id", res.RunID),
			zap.Int("failures", len(res.Failures())),
		)
		resp.Error = "no final output produced"
		resp.FinalOutput = fallbackOutput()
	default:
		resp.FinalOutput = final
	}

	s.logger.Info("wellness request answered",
		zap.String("run_id", res.RunID),
		zap.String("status", string(res.Status)),
		zap.Duration("duration", resp.Duration),
	)
	return resp, nil
}

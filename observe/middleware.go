package observe

import (
	"context"
	"errors"
	"time"
)

// ExecuteFunc performs one procedure call with serialized input and returns
// the serialized output.
type ExecuteFunc func(ctx context.Context, meta ProcedureMeta, input []byte) ([]byte, error)

// Middleware wraps procedure calls with tracing, metrics, and logging.
//
// Contract:
//   - Concurrency: Wrap() returns a thread-safe ExecuteFunc.
//   - Errors: errors from the wrapped function are recorded and returned unchanged.
//   - Cancellation is logged at debug level and never counted as a failure.
type Middleware struct {
	tracer  Tracer
	metrics Metrics
	logger  Logger
}

// NewMiddleware creates a Middleware. Nil components are replaced by no-ops.
func NewMiddleware(tracer Tracer, metrics Metrics, logger Logger) *Middleware {
	if tracer == nil {
		tracer = NewTracer(NopObserver().Tracer())
	}
	if metrics == nil {
		metrics = NopMetrics()
	}
	if logger == nil {
		logger = NopLogger()
	}
	return &Middleware{tracer: tracer, metrics: metrics, logger: logger}
}

// Metrics returns the metrics sink used by the middleware.
func (m *Middleware) Metrics() Metrics { return m.metrics }

// Wrap wraps fn with a span, call metrics and a completion log line.
func (m *Middleware) Wrap(fn ExecuteFunc) ExecuteFunc {
	return func(ctx context.Context, meta ProcedureMeta, input []byte) ([]byte, error) {
		ctx, span := m.tracer.StartSpan(ctx, meta)
		start := time.Now()

		out, err := fn(ctx, meta, input)

		duration := time.Since(start)
		m.tracer.EndSpan(span, err)
		m.metrics.RecordCall(ctx, meta, duration, err)

		log := m.logger.WithProcedure(meta)
		fields := []Field{{Key: "duration_ms", Value: float64(duration.Microseconds()) / 1000}}
		switch {
		case err == nil:
			log.Debug(ctx, "procedure call completed", append(fields, Field{Key: "output_bytes", Value: len(out)})...)
		case errors.Is(err, context.Canceled):
			log.Debug(ctx, "procedure call canceled", fields...)
		default:
			log.Warn(ctx, "procedure call failed", append(fields, Field{Key: "error", Value: err.Error()})...)
		}
		return out, err
	}
}

// MiddlewareFromObserver creates a Middleware from an Observer.
func MiddlewareFromObserver(obs Observer) (*Middleware, error) {
	if obs == nil {
		return nil, ErrNilObserver
	}
	metrics, err := NewMetrics(obs.Meter())
	if err != nil {
		return nil, err
	}
	return NewMiddleware(NewTracer(obs.Tracer()), metrics, obs.Logger()), nil
}

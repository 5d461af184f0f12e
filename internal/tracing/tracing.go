package tracing

import (
	"context"
	"fmt"
	"io"

	"github.com/opentracing/opentracing-go"
	"github.com/uber/jaeger-client-go"
	"github.com/uber/jaeger-client-go/config"
)

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// InitTracer initializes the Jaeger tracer and installs it globally.
// agentEndpoint is the host:port of the jaeger agent.
func InitTracer(serviceName, agentEndpoint string, samplingRate float64) (opentracing.Tracer, io.Closer, error) {
	sampler := &config.SamplerConfig{
		Type:  jaeger.SamplerTypeConst,
		Param: 1,
	}
	if samplingRate < 1 {
		sampler = &config.SamplerConfig{
			Type:  jaeger.SamplerTypeProbabilistic,
			Param: samplingRate,
		}
	}

	cfg := &config.Configuration{
		ServiceName: serviceName,
		Sampler:     sampler,
		Reporter: &config.ReporterConfig{
			LogSpans:           false,
			LocalAgentHostPort: agentEndpoint,
		},
	}

	tracer, closer, err := cfg.NewTracer()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize tracer: %w", err)
	}

	opentracing.SetGlobalTracer(tracer)
	return tracer, closer, nil
}

// Init installs a jaeger tracer when enabled and a no-op tracer otherwise
func Init(enabled bool, serviceName, agentEndpoint string, samplingRate float64) (io.Closer, error) {
	if !enabled {
		opentracing.SetGlobalTracer(opentracing.NoopTracer{})
		return nopCloser{}, nil
	}
	_, closer, err := InitTracer(serviceName, agentEndpoint, samplingRate)
	return closer, err
}

// StartSpan starts a new span with the given operation name
func StartSpan(ctx context.Context, operationName string) (opentracing.Span, context.Context) {
	return opentracing.StartSpanFromContext(ctx, operationName)
}

// FinishSpan finishes a span
func FinishSpan(span opentracing.Span) {
	if span != nil {
		span.Finish()
	}
}

// LogError marks the span as failed
func LogError(span opentracing.Span, err error) {
	if span != nil && err != nil {
		span.SetTag("error", true)
		span.LogKV("error", err.Error())
	}
}

// SetTag sets a tag on the span
func SetTag(span opentracing.Span, key string, value interface{}) {
	if span != nil {
		span.SetTag(key, value)
	}
}

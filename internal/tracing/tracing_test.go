package tracing

import (
	"context"
	"errors"
	"testing"

	"github.com/opentracing/opentracing-go"
	"github.com/opentracing/opentracing-go/mocktracer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSpanHelpers(t *testing.T) {
	tracer := mocktracer.New()
	opentracing.SetGlobalTracer(tracer)
	defer opentracing.SetGlobalTracer(opentracing.NoopTracer{})

	span, ctx := StartSpan(context.Background(), "profile.upsert")
	SetTag(span, "user_id", "user-1")
	LogError(span, errors.New("boom"))
	FinishSpan(span)

	assert.NotNil(t, opentracing.SpanFromContext(ctx))

	finished := tracer.FinishedSpans()
	require.Len(t, finished, 1)
	assert.Equal(t, "profile.upsert", finished[0].OperationName)
	assert.Equal(t, "user-1", finished[0].Tag("user_id"))
	assert.Equal(t, true, finished[0].Tag("error"))
}

func TestNilSpanIsSafe(t *testing.T) {
	FinishSpan(nil)
	LogError(nil, errors.New("x"))
	SetTag(nil, "k", "v")
}

func TestInitDisabled(t *testing.T) {
	closer, err := Init(false, "ideasaver", "", 1)
	require.NoError(t, err)
	assert.NoError(t, closer.Close())
	assert.IsType(t, opentracing.NoopTracer{}, opentracing.GlobalTracer())
}

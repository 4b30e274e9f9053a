package prom

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matzehuels/framegraph/pkg/observability"
)

var (
	_ observability.GraphHooks = (*Metrics)(nil)
	_ observability.EvalHooks  = (*Metrics)(nil)
	_ observability.StoreHooks = (*Metrics)(nil)
)

func TestMetricsCountEvents(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := New(reg)
	require.NoError(t, err)

	ctx := context.Background()
	m.OnMutation(ctx, "connect", nil)
	m.OnMutation(ctx, "connect", errors.New("cycle"))
	m.OnNodeEvaluated(ctx, "p", "n1", "blur", time.Millisecond, nil)
	m.OnNodeEvaluated(ctx, "p", "n2", "blur", time.Millisecond, nil)
	m.OnPassComplete(ctx, "p", "n2", 2, 3*time.Millisecond, nil)
	m.OnStoreOp(ctx, "file", "save", time.Millisecond, nil)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.mutations.WithLabelValues("connect", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.mutations.WithLabelValues("connect", "error")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.nodeEvals.WithLabelValues("blur", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.passes.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.storeOps.WithLabelValues("file", "save", "ok")))
	assert.Equal(t, 2, testutil.CollectAndCount(m.mutations))
}

func TestNewRejectsDoubleRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := New(reg)
	require.NoError(t, err)
	_, err = New(reg)
	assert.Error(t, err)
}

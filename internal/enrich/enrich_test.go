package enrich

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/epiworks/episeek/internal/dispatch"
	"github.com/epiworks/episeek/internal/model"
	"github.com/epiworks/episeek/internal/pace"

	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fakeAdapter struct {
	name  string
	calls atomic.Int64
	fn    func(key model.Key) model.Outcome
}

func (f *fakeAdapter) Name() string { return f.name }

func (f *fakeAdapter) Call(_ context.Context, key model.Key, _ model.Params) model.Outcome {
	f.calls.Add(1)
	return f.fn(key)
}

type deadAdapter struct{ fakeAdapter }

func (d *deadAdapter) Ping(context.Context) error {
	return errors.New("connection refused")
}

func score(v float64) func(model.Key) model.Outcome {
	return func(model.Key) model.Outcome {
		return model.Success(model.Immunogenicity{Score: v})
	}
}

func newOrch() *Orchestrator {
	return New(dispatch.New(2, pace.None{}), model.Params{Allele: "HLA-A*02:01", Method: "nn_align"})
}

func TestRunMergesAllServices(t *testing.T) {
	t.Parallel()
	keys := []model.Key{"SIINFEKL", "GILGFVFTL", "NLVPMVATV"}
	table := model.NewTable(keys)

	first := &fakeAdapter{name: "immunogenicity", fn: score(0.5)}
	second := &fakeAdapter{name: "annotation", fn: func(model.Key) model.Outcome {
		return model.Success(model.Annotation{Protein: "Ovalbumin"})
	}}

	require.NoError(t, newOrch().Run(context.Background(), table, first, second))

	require.ElementsMatch(t, []string{"immunogenicity", "annotation"}, table.Services())
	require.EqualValues(t, len(keys), first.calls.Load())
	require.EqualValues(t, len(keys), second.calls.Load())
	for _, key := range keys {
		out, ok := table.Outcome(key, "immunogenicity")
		require.True(t, ok)
		require.True(t, out.OK())
	}
}

func TestRunSkipsAlreadyMergedService(t *testing.T) {
	t.Parallel()
	table := model.NewTable([]model.Key{"SIINFEKL"})
	table.Merge("immunogenicity", map[model.Key]model.Outcome{
		"SIINFEKL": model.Success(model.Immunogenicity{Score: 0.9}),
	})

	a := &fakeAdapter{name: "immunogenicity", fn: score(0.1)}
	require.NoError(t, newOrch().Run(context.Background(), table, a))

	require.Zero(t, a.calls.Load(), "present service must not be re-dispatched")
	out, _ := table.Outcome("SIINFEKL", "immunogenicity")
	require.InDelta(t, 0.9, out.Value.(model.Immunogenicity).Score, 1e-9)
}

func TestRunSameAdapterTwiceRunsOnce(t *testing.T) {
	t.Parallel()
	table := model.NewTable([]model.Key{"SIINFEKL", "GILGFVFTL"})
	a := &fakeAdapter{name: "immunogenicity", fn: score(0.5)}

	require.NoError(t, newOrch().Run(context.Background(), table, a, a))
	require.EqualValues(t, table.Len(), a.calls.Load())
}

func TestRunDeadServiceFailsUniformly(t *testing.T) {
	t.Parallel()
	keys := []model.Key{"SIINFEKL", "GILGFVFTL", "NLVPMVATV"}
	table := model.NewTable(keys)
	dead := &deadAdapter{fakeAdapter{name: "affinity", fn: score(1)}}

	require.NoError(t, newOrch().Run(context.Background(), table, dead))

	require.Zero(t, dead.calls.Load(), "dead service must not be dispatched")
	require.Equal(t, len(keys), table.FailureCount("affinity"))
	for _, key := range keys {
		out, ok := table.Outcome(key, "affinity")
		require.True(t, ok)
		require.Equal(t, model.ReasonTransport, out.Reason)
	}
}

func TestRunPartialFailureIsContained(t *testing.T) {
	t.Parallel()
	table := model.NewTable([]model.Key{"SIINFEKL", "BADPEPTIDE", "GILGFVFTL"})
	a := &fakeAdapter{name: "affinity", fn: func(key model.Key) model.Outcome {
		if key == "BADPEPTIDE" {
			return model.Failure(model.ReasonRejected, errors.New("not scorable"))
		}
		return model.Success(model.Affinity{IC50: 42})
	}}

	require.NoError(t, newOrch().Run(context.Background(), table, a))

	require.Equal(t, 1, table.FailureCount("affinity"))
	out, _ := table.Outcome("SIINFEKL", "affinity")
	require.True(t, out.OK())
	out, _ = table.Outcome("BADPEPTIDE", "affinity")
	require.Equal(t, model.ReasonRejected, out.Reason)
}

func TestRunCancelledContext(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	table := model.NewTable([]model.Key{"SIINFEKL"})
	a := &fakeAdapter{name: "affinity", fn: score(1)}
	require.ErrorIs(t, newOrch().Run(ctx, table, a), context.Canceled)
	require.Zero(t, a.calls.Load())
}

func TestWithRetry(t *testing.T) {
	t.Parallel()

	t.Run("transient failure retried until success", func(t *testing.T) {
		t.Parallel()
		a := &fakeAdapter{name: "affinity"}
		a.fn = func(model.Key) model.Outcome {
			if a.calls.Load() < 3 {
				return model.Failure(model.ReasonTimeout, errors.New("deadline"))
			}
			return model.Success(model.Affinity{IC50: 42})
		}

		out := WithRetry(a, 3, time.Millisecond).
			Call(context.Background(), "SIINFEKL", model.Params{})
		require.True(t, out.OK())
		require.EqualValues(t, 3, a.calls.Load())
	})

	t.Run("rejection is final", func(t *testing.T) {
		t.Parallel()
		a := &fakeAdapter{name: "affinity", fn: func(model.Key) model.Outcome {
			return model.Failure(model.ReasonRejected, errors.New("nope"))
		}}

		out := WithRetry(a, 5, time.Millisecond).
			Call(context.Background(), "SIINFEKL", model.Params{})
		require.Equal(t, model.ReasonRejected, out.Reason)
		require.EqualValues(t, 1, a.calls.Load())
	})

	t.Run("attempts exhausted", func(t *testing.T) {
		t.Parallel()
		a := &fakeAdapter{name: "affinity", fn: func(model.Key) model.Outcome {
			return model.Failure(model.ReasonTransport, errors.New("refused"))
		}}

		out := WithRetry(a, 3, time.Millisecond).
			Call(context.Background(), "SIINFEKL", model.Params{})
		require.Equal(t, model.ReasonTransport, out.Reason)
		require.EqualValues(t, 3, a.calls.Load())
	})

	t.Run("single attempt returns adapter unchanged", func(t *testing.T) {
		t.Parallel()
		a := &fakeAdapter{name: "affinity", fn: score(1)}
		require.Same(t, Adapter(a), WithRetry(a, 1, time.Millisecond))
	})
}

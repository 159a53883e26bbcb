package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/epiworks/episeek/internal/model"

	"github.com/stretchr/testify/require"
)

func openStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "archive.db"))
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, s.Close())
	})
	return s
}

func enrichedTable() *model.Table {
	t := model.NewTable([]model.Key{"SIINFEKL", "GILGFVFTL"})
	t.Merge("affinity", map[model.Key]model.Outcome{
		"SIINFEKL":  model.Success(model.Affinity{IC50: 42, Allele: "HLA-A*02:01"}),
		"GILGFVFTL": model.Failure(model.ReasonTimeout, errors.New("deadline")),
	})
	return t
}

func TestSaveAndListRuns(t *testing.T) {
	t.Parallel()
	s := openStore(t)
	ctx := context.Background()

	id1, err := s.SaveRun(ctx, "input.fasta", enrichedTable())
	require.NoError(t, err)
	id2, err := s.SaveRun(ctx, "other.tsv", enrichedTable())
	require.NoError(t, err)
	require.NotEqual(t, id1, id2)

	runs, err := s.ListRuns(ctx)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	for _, r := range runs {
		require.Equal(t, 2, r.Keys)
		require.Equal(t, []string{"affinity"}, r.Services)
		require.False(t, r.CreatedAt.IsZero())
	}
}

func TestFailureTally(t *testing.T) {
	t.Parallel()
	s := openStore(t)
	ctx := context.Background()

	id, err := s.SaveRun(ctx, "input.fasta", enrichedTable())
	require.NoError(t, err)

	tally, err := s.Failures(ctx, id)
	require.NoError(t, err)
	require.Equal(t, map[string]int{"affinity": 1}, tally)
}

func TestListRunsEmpty(t *testing.T) {
	t.Parallel()
	s := openStore(t)

	runs, err := s.ListRuns(context.Background())
	require.NoError(t, err)
	require.Empty(t, runs)
}

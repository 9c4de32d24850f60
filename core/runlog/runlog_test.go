package runlog

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/sampler/core/command"
)

func TestSummarize(t *testing.T) {
	s := Summarize([]float64{20, 22, 24})
	assert.Equal(t, 3, s.Count)
	assert.InDelta(t, 22, s.Mean, 1e-9)
	assert.InDelta(t, 2, s.StdDev, 1e-9)
	assert.Equal(t, 20.0, s.Min)
	assert.Equal(t, 24.0, s.Max)

	assert.Equal(t, Summary{}, Summarize(nil))
	one := Summarize([]float64{21.5})
	assert.Equal(t, Summary{Count: 1, Mean: 21.5, Min: 21.5, Max: 21.5}, one)
}

func record(id string, finished time.Time) Record {
	return Record{
		JobID:     id,
		Command:   command.Command{NumMeasurements: 3, IntervalMS: 50},
		Started:   finished.Add(-150 * time.Millisecond),
		Finished:  finished,
		Published: 3,
		Summary:   Summarize([]float64{21, 22, 23}),
	}
}

func TestMemoryStoreQuery(t *testing.T) {
	ctx := context.Background()
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	st := NewMemoryStore()
	for i, id := range []string{"a", "b", "c"} {
		require.NoError(t, st.Append(ctx, record(id, base.Add(time.Duration(i)*time.Minute))))
	}

	all, err := st.Query(ctx, Query{})
	require.NoError(t, err)
	assert.Len(t, all, 3)

	recent, err := st.Query(ctx, Query{Start: base.Add(30 * time.Second)})
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, "b", recent[0].JobID)

	last, err := st.Query(ctx, Query{Limit: 1})
	require.NoError(t, err)
	require.Len(t, last, 1)
	assert.Equal(t, "c", last[0].JobID)

	early, err := st.Query(ctx, Query{End: base})
	require.NoError(t, err)
	require.Len(t, early, 1)
	assert.Equal(t, "a", early[0].JobID)
}

func TestJSONLStoreAppendQuery(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "logs", "runs.jsonl")
	st, err := NewJSONLStore(path, 1, 2, 1)
	require.NoError(t, err)

	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, st.Append(ctx, record("second", base.Add(time.Minute))))
	require.NoError(t, st.Append(ctx, record("first", base)))

	recs, err := st.Query(ctx, Query{})
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, "first", recs[0].JobID)
	assert.Equal(t, "second", recs[1].JobID)
	assert.Equal(t, command.Command{NumMeasurements: 3, IntervalMS: 50}, recs[0].Command)
	assert.InDelta(t, 22, recs[0].Summary.Mean, 1e-9)
	require.NoError(t, st.Close())
}

func TestJSONLStoreReadsRotatedFiles(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	path := filepath.Join(dir, "runs.jsonl")
	st, err := NewJSONLStore(path, 1, 2, 1)
	require.NoError(t, err)
	defer st.Close()

	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	// a backup left by a previous rotation, plus a garbage line
	backup := filepath.Join(dir, "runs-2024-05-01T11-00-00.000.jsonl")
	line := `{"job_id":"old","finished":"2024-05-01T11:00:00Z"}` + "\nnot json\n"
	require.NoError(t, os.WriteFile(backup, []byte(line), 0o644))
	require.NoError(t, st.Append(ctx, record("new", base)))

	recs, err := st.Query(ctx, Query{})
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, "old", recs[0].JobID)
	assert.Equal(t, "new", recs[1].JobID)
}

func TestJSONLStoreEmpty(t *testing.T) {
	st, err := NewJSONLStore(filepath.Join(t.TempDir(), "runs.jsonl"), 1, 1, 1)
	require.NoError(t, err)
	recs, err := st.Query(context.Background(), Query{})
	require.NoError(t, err)
	assert.Empty(t, recs)
}

func TestSQLiteStorePersistQuery(t *testing.T) {
	ctx := context.Background()
	st, err := NewSQLiteStore(filepath.Join(t.TempDir(), "runs.db"))
	require.NoError(t, err)
	defer func() { _ = st.Close() }()

	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	for i, id := range []string{"b", "a", "c"} {
		offset := []time.Duration{time.Minute, 0, 2 * time.Minute}[i]
		require.NoError(t, st.Append(ctx, record(id, base.Add(offset))))
	}

	all, err := st.Query(ctx, Query{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, []string{"a", "b", "c"}, []string{all[0].JobID, all[1].JobID, all[2].JobID})
	assert.InDelta(t, 22, all[0].Summary.Mean, 1e-9)
	assert.True(t, all[0].Finished.Equal(base))

	last, err := st.Query(ctx, Query{Limit: 2})
	require.NoError(t, err)
	require.Len(t, last, 2)
	assert.Equal(t, "b", last[0].JobID)
	assert.Equal(t, "c", last[1].JobID)

	window, err := st.Query(ctx, Query{Start: base.Add(30 * time.Second), End: base.Add(90 * time.Second)})
	require.NoError(t, err)
	require.Len(t, window, 1)
	assert.Equal(t, "b", window[0].JobID)
}

func TestSQLiteStoreReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "runs.db")
	st, err := NewSQLiteStore(path)
	require.NoError(t, err)
	require.NoError(t, st.Append(ctx, record("kept", time.Now().UTC())))
	require.NoError(t, st.Close())

	st, err = NewSQLiteStore(path)
	require.NoError(t, err)
	defer func() { _ = st.Close() }()
	recs, err := st.Query(ctx, Query{})
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "kept", recs[0].JobID)
}

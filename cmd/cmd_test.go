package cmd

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/sampler/core/command"
	"github.com/kilianp07/sampler/core/runlog"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetArgs(nil)
		convertInvert = false
		historyFmt = "table"
		historySince = 0
		historyLimit = 20
		cfgPath = "config.yaml"
		rootCmd.PersistentFlags().Lookup("config").Changed = false
	})
	err := rootCmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestConvert(t *testing.T) {
	out, err := execute(t, "convert", "2048", "0")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[0], "2048\t4.9"), lines[0])
	assert.True(t, strings.HasPrefix(lines[1], "0\t185.5"), lines[1])
}

func TestConvertInvert(t *testing.T) {
	out, err := execute(t, "convert", "--invert", "25")
	require.NoError(t, err)
	assert.Equal(t, "25\t1832\n", out)
}

func TestConvertRejectsOutOfRange(t *testing.T) {
	_, err := execute(t, "convert", "70000")
	assert.Error(t, err)
}

func TestExplicitConfigMustExist(t *testing.T) {
	_, err := execute(t, "--config", filepath.Join(t.TempDir(), "missing.yaml"), "convert", "1")
	assert.Error(t, err)
}

func TestHistory(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "runs.jsonl")
	cfg := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(cfg, []byte("runlog:\n  path: "+path+"\n"), 0o644))

	st, err := runlog.NewJSONLStore(path, 1, 1, 1)
	require.NoError(t, err)
	now := time.Now()
	for _, id := range []string{"old", "new"} {
		require.NoError(t, st.Append(context.Background(), runlog.Record{
			JobID:     id,
			Command:   command.Command{NumMeasurements: 3, IntervalMS: 50},
			Started:   now.Add(-time.Second),
			Finished:  now,
			Published: 3,
			Summary:   runlog.Summarize([]float64{20, 21, 22}),
		}))
	}
	require.NoError(t, st.Close())

	out, err := execute(t, "--config", cfg, "history", "--limit", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "FINISHED")
	assert.Contains(t, out, "new")
	assert.NotContains(t, out, "old")
	assert.Contains(t, out, "measure:3,50")

	out, err = execute(t, "--config", cfg, "history", "--format", "json", "--limit", "10")
	require.NoError(t, err)
	assert.Equal(t, 2, strings.Count(out, `"job_id"`))

	out, err = execute(t, "--config", cfg, "history", "-o", "csv", "--limit", "10")
	require.NoError(t, err)
	assert.Equal(t, 3, strings.Count(strings.TrimSpace(out), "\n")+1)
	assert.True(t, strings.HasPrefix(out, "job_id,num_measurements"))

	_, err = execute(t, "--config", cfg, "history", "-o", "xml")
	assert.Error(t, err)
}

func TestCollectRunSkipsEarlierRun(t *testing.T) {
	lines := make(chan string, 8)
	// tail of a run that was already executing, then ours
	for _, l := range []string{"1,25.1,900", "0,25.1,950", "2,25,1000", "1,25,1050", "0,25,1100"} {
		lines <- l
	}
	var buf bytes.Buffer
	require.NoError(t, collectRun(context.Background(), lines, 3, &buf))
	assert.Equal(t, "2,25,1000\n1,25,1050\n0,25,1100\n", buf.String())
}

func TestCollectRunTimeout(t *testing.T) {
	lines := make(chan string, 1)
	lines <- "1,25,10"
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	var buf bytes.Buffer
	err := collectRun(ctx, lines, 2, &buf)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Contains(t, err.Error(), "received 1 of 2")
	assert.Equal(t, "1,25,10\n", buf.String())
}

func TestCollectRunZeroCount(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, collectRun(context.Background(), make(chan string), 0, &buf))
	assert.Empty(t, buf.String())
}

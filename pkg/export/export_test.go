package export

import (
	"bytes"
	"encoding/csv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/sampler/core/command"
	"github.com/kilianp07/sampler/core/runlog"
)

func sample() []runlog.Record {
	finished := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	return []runlog.Record{{
		JobID:     "job-1",
		Command:   command.Command{NumMeasurements: 3, IntervalMS: 50},
		Started:   finished.Add(-150 * time.Millisecond),
		Finished:  finished,
		Published: 2,
		Skipped:   1,
		Summary:   runlog.Summarize([]float64{24.5, 25.5}),
	}}
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, sample()))

	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, CSVHeader, rows[0])
	row := rows[1]
	assert.Equal(t, "job-1", row[0])
	assert.Equal(t, "3", row[1])
	assert.Equal(t, "50", row[2])
	assert.Equal(t, "", row[3], "zero received time stays empty")
	assert.Equal(t, "2024-05-01T12:00:00Z", row[5])
	assert.Equal(t, "2", row[6])
	assert.Equal(t, "1", row[7])
	assert.Equal(t, "false", row[9])
	assert.Equal(t, "25", row[10])
}

func TestWriteJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteJSON(&buf, append(sample(), sample()...)))
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], `"job_id":"job-1"`)
	assert.Contains(t, lines[0], `"interval_ms":50`)
}

// Package export renders run records for external tools.
package export

import (
	"encoding/csv"
	"encoding/json"
	"io"
	"strconv"
	"time"

	"github.com/kilianp07/sampler/core/runlog"
)

// CSVHeader lists the columns written by WriteCSV.
var CSVHeader = []string{
	"job_id", "num_measurements", "interval_ms", "received", "started", "finished",
	"published", "skipped", "dropped", "interrupted", "mean", "stddev", "min", "max",
}

// WriteJSON writes one JSON document per record.
func WriteJSON(w io.Writer, recs []runlog.Record) error {
	enc := json.NewEncoder(w)
	for _, r := range recs {
		if err := enc.Encode(r); err != nil {
			return err
		}
	}
	return nil
}

// WriteCSV writes the records in CSV format with a header line.
func WriteCSV(w io.Writer, recs []runlog.Record) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(CSVHeader); err != nil {
		return err
	}
	for _, r := range recs {
		rec := []string{
			r.JobID,
			strconv.FormatUint(uint64(r.Command.NumMeasurements), 10),
			strconv.FormatUint(uint64(r.Command.IntervalMS), 10),
			formatTime(r.Received),
			formatTime(r.Started),
			formatTime(r.Finished),
			strconv.Itoa(r.Published),
			strconv.Itoa(r.Skipped),
			strconv.Itoa(r.Dropped),
			strconv.FormatBool(r.Interrupted),
			strconv.FormatFloat(r.Summary.Mean, 'f', -1, 64),
			strconv.FormatFloat(r.Summary.StdDev, 'f', -1, 64),
			strconv.FormatFloat(r.Summary.Min, 'f', -1, 64),
			strconv.FormatFloat(r.Summary.Max, 'f', -1, 64),
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(time.RFC3339Nano)
}

// Package command decodes the textual sampling instructions received on the
// command topic. The wire grammar is
//
//	measure:<num_measurements>,<interval_ms>
//
// where both fields are unsigned 16-bit base-10 integers. Parsing is strict:
// no whitespace is tolerated and every input maps to either a Command or one
// of the errors declared below.
package command

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"
)

// Keyword is the only instruction recognized on the command topic.
const Keyword = "measure"

const (
	FieldNumMeasurements = "num_measurements"
	FieldIntervalMS      = "interval_ms"
)

var (
	ErrEncoding              = errors.New("command: payload is not valid utf-8")
	ErrMissingSeparator      = errors.New("command: missing ':' separator")
	ErrUnrecognizedKeyword   = errors.New("command: unrecognized keyword")
	ErrMissingFieldSeparator = errors.New("command: missing ',' separator")
	ErrInvalidNumber         = errors.New("command: invalid number")
)

// NumberError reports a numeric field that is not an unsigned 16-bit integer.
type NumberError struct {
	Field string
	Value string
	Err   error
}

func (e *NumberError) Error() string {
	return fmt.Sprintf("command: invalid %s %q: %v", e.Field, e.Value, e.Err)
}

// Is makes errors.Is(err, ErrInvalidNumber) hold for every NumberError.
func (e *NumberError) Is(target error) bool { return target == ErrInvalidNumber }

func (e *NumberError) Unwrap() error { return e.Err }

// Command asks for NumMeasurements sensor reads spaced by IntervalMS
// milliseconds. Zero values are legal: no samples, or no wait between them.
type Command struct {
	NumMeasurements uint16 `json:"num_measurements"`
	IntervalMS      uint16 `json:"interval_ms"`
}

// Interval returns the requested spacing between two reads.
func (c Command) Interval() time.Duration {
	return time.Duration(c.IntervalMS) * time.Millisecond
}

// String renders the command in its wire form.
func (c Command) String() string {
	return Keyword + ":" + strconv.FormatUint(uint64(c.NumMeasurements), 10) + "," + strconv.FormatUint(uint64(c.IntervalMS), 10)
}

// Parse decodes one inbound message.
func Parse(payload []byte) (Command, error) {
	if !utf8.Valid(payload) {
		return Command{}, ErrEncoding
	}
	keyword, data, ok := strings.Cut(string(payload), ":")
	if !ok {
		return Command{}, ErrMissingSeparator
	}
	if keyword != Keyword {
		return Command{}, fmt.Errorf("%w: %q", ErrUnrecognizedKeyword, keyword)
	}
	count, interval, ok := strings.Cut(data, ",")
	if !ok {
		return Command{}, ErrMissingFieldSeparator
	}
	n, err := parseField(FieldNumMeasurements, count)
	if err != nil {
		return Command{}, err
	}
	i, err := parseField(FieldIntervalMS, interval)
	if err != nil {
		return Command{}, err
	}
	return Command{NumMeasurements: n, IntervalMS: i}, nil
}

func parseField(name, s string) (uint16, error) {
	v, err := strconv.ParseUint(s, 10, 16)
	if err != nil {
		return 0, &NumberError{Field: name, Value: s, Err: err}
	}
	return uint16(v), nil
}

// Reason maps a parse error to a short label suitable for metrics.
func Reason(err error) string {
	var nerr *NumberError
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrEncoding):
		return "encoding"
	case errors.Is(err, ErrMissingSeparator):
		return "missing_separator"
	case errors.Is(err, ErrUnrecognizedKeyword):
		return "unrecognized_keyword"
	case errors.Is(err, ErrMissingFieldSeparator):
		return "missing_field_separator"
	case errors.As(err, &nerr):
		return "invalid_" + nerr.Field
	default:
		return "unknown"
	}
}

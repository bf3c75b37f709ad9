package report

import (
	"fmt"
	"image"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/montanaflynn/stats"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
)

// TimeCostLogName is the file timing lines are appended to inside the output directory.
const TimeCostLogName = "time_cost.log"

// TimeCostLog appends one line per processed frame to time_cost.log and keeps the durations that
// count towards the run average. The first frame warms caches and is usually left out.
type TimeCostLog struct {
	out *Output

	mu        sync.Mutex
	f         *os.File
	lastName  string
	durations []time.Duration
}

// OpenTimeCostLog opens (or creates) the log in append mode.
func OpenTimeCostLog(out *Output) (*TimeCostLog, error) {
	path := filepath.Join(out.Dir, TimeCostLogName)
	//nolint:gosec
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, errors.Wrapf(err, "cannot open %q", path)
	}
	return &TimeCostLog{out: out, f: f}, nil
}

func writeTimeCost(f *os.File, name string, d time.Duration) error {
	_, err := fmt.Fprintf(f, "%s: %8.3fms\n", name, milliseconds(d))
	return err
}

func milliseconds(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}

// Record logs the duration of the frame identified by size and postfix. Only counted frames
// contribute to the average.
func (l *TimeCostLog) Record(size image.Point, postfix string, d time.Duration, counted bool) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.lastName = l.out.FileName("disp", size, postfix, "jpg")
	if counted {
		l.durations = append(l.durations, d)
	}
	return writeTimeCost(l.f, l.lastName, d)
}

// Durations returns the counted durations in recording order.
func (l *TimeCostLog) Durations() []time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]time.Duration(nil), l.durations...)
}

// Average is the mean of the counted durations, zero when nothing was counted.
func (l *TimeCostLog) Average() time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()
	return average(l.durations)
}

func average(ds []time.Duration) time.Duration {
	if len(ds) == 0 {
		return 0
	}
	var total time.Duration
	for _, d := range ds {
		total += d
	}
	return total / time.Duration(len(ds))
}

// Close writes the average line under the name of the last frame, if any frame was counted,
// and closes the file.
func (l *TimeCostLog) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	var err error
	if len(l.durations) > 0 {
		err = writeTimeCost(l.f, l.lastName, average(l.durations))
	}
	return multierr.Combine(err, l.f.Close())
}

// Summary describes the distribution of frame times of a run.
type Summary struct {
	Frames int
	Mean   time.Duration
	Median time.Duration
	P95    time.Duration
	Min    time.Duration
	Max    time.Duration
	StdDev time.Duration
}

// TimingSummary computes Summary over durations.
func TimingSummary(durations []time.Duration) (Summary, error) {
	if len(durations) == 0 {
		return Summary{}, errors.New("no frame timings recorded")
	}
	data := make(stats.Float64Data, len(durations))
	for i, d := range durations {
		data[i] = float64(d)
	}
	var (
		s   = Summary{Frames: len(durations)}
		err error
		v   float64
	)
	collect := func(dst *time.Duration, fn func() (float64, error)) {
		if err != nil {
			return
		}
		v, err = fn()
		*dst = time.Duration(v)
	}
	collect(&s.Mean, data.Mean)
	collect(&s.Median, data.Median)
	collect(&s.P95, func() (float64, error) { return data.Percentile(95) })
	collect(&s.Min, data.Min)
	collect(&s.Max, data.Max)
	collect(&s.StdDev, data.StandardDeviation)
	if err != nil {
		return Summary{}, errors.Wrap(err, "cannot summarise frame timings")
	}
	return s, nil
}

// Table renders the summary for a terminal.
func (s Summary) Table(title string) string {
	t := table.NewWriter()
	t.SetTitle(title)
	t.AppendHeader(table.Row{"frames", "mean", "median", "p95", "min", "max", "stddev"})
	row := table.Row{s.Frames}
	for _, d := range []time.Duration{s.Mean, s.Median, s.P95, s.Min, s.Max, s.StdDev} {
		row = append(row, fmt.Sprintf("%.3fms", milliseconds(d)))
	}
	t.AppendRow(row)
	return t.Render()
}

// Package exposure derives the exposure normalization constant (EOT) and
// the parallel-job occupancy of a simulation from its run-summary records.
package exposure

import (
	"context"
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/AntoninoFulci/bdxplot"
	"github.com/AntoninoFulci/bdxplot/frame"
	"github.com/AntoninoFulci/bdxplot/selection"
)

// Record is the summary of one simulation job.
type Record struct {
	TotalEvents int64
	AvgTime     float64 // seconds per primary
	Start       float64 // unix time, seconds
	Duration    float64 // seconds
}

func (r Record) End() float64 { return r.Start + r.Duration }

// Summary is the exposure of a whole dataset.
type Summary struct {
	EOT                  float64
	MeanAvgTime          float64
	MinStart             float64
	MaxEnd               float64
	TotalDuration        float64
	AverageParallelJobs  float64
	ParallelJobsStdError float64

	// Fingerprint identifies the input set the summary was computed from.
	Fingerprint string
}

var columns = []string{"TotEvents", "AvgTime", "StartTime", "TotTime"}

// Read collects the run-summary records of every partition of src.
func Read(ctx context.Context, src frame.Source) ([]Record, error) {
	var recs []Record
	for part := 0; part < src.Partitions(); part++ {
		err := src.Scan(ctx, part, columns, func(row selection.Row) error {
			recs = append(recs, Record{
				// rows are float64: exact up to 2^53 events per job.
				TotalEvents: int64(row[0]),
				AvgTime:     row[1],
				Start:       row[2],
				Duration:    row[3],
			})
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	return recs, nil
}

// Estimate computes the exposure summary of recs.
func Estimate(recs []Record) (Summary, error) {
	if len(recs) == 0 {
		return Summary{}, bdxplot.Computef("no run summary record")
	}

	var (
		total int64
		avg   = make([]float64, len(recs))
		sum   = Summary{
			MinStart: math.Inf(+1),
			MaxEnd:   math.Inf(-1),
		}
	)
	for i, r := range recs {
		total += r.TotalEvents
		avg[i] = r.AvgTime
		sum.MinStart = math.Min(sum.MinStart, r.Start)
		sum.MaxEnd = math.Max(sum.MaxEnd, r.End())
	}
	sum.EOT = float64(total)
	sum.MeanAvgTime = stat.Mean(avg, nil)
	sum.TotalDuration = sum.MaxEnd - sum.MinStart

	if sum.EOT <= 0 {
		return Summary{}, bdxplot.Computef("non-positive EOT (%v) from %d jobs", sum.EOT, len(recs))
	}
	if !(sum.TotalDuration > 0) {
		return Summary{}, bdxplot.Computef("zero total duration from %d jobs", len(recs))
	}

	mean, stderr, err := occupancy(recs, sum.MinStart, sum.TotalDuration)
	if err != nil {
		return Summary{}, err
	}
	sum.AverageParallelJobs = mean
	sum.ParallelJobsStdError = stderr
	return sum, nil
}

type edge struct {
	t     float64
	delta int
}

// occupancy returns the time-weighted mean number of running jobs over
// span and its standard error. Every delta sharing a timestamp is applied
// at once, after the gap ending at that timestamp has been recorded, so the
// result does not depend on the order of simultaneous starts and ends.
func occupancy(recs []Record, t0, span float64) (mean, stderr float64, err error) {
	edges := make([]edge, 0, 2*len(recs))
	for _, r := range recs {
		edges = append(edges, edge{r.Start, +1}, edge{r.End(), -1})
	}
	sort.SliceStable(edges, func(i, j int) bool { return edges[i].t < edges[j].t })

	var (
		gaps   []float64
		jobs   []float64
		active = 0
		prev   = t0
	)
	for i := 0; i < len(edges); {
		t := edges[i].t
		if dt := t - prev; dt > 0 {
			gaps = append(gaps, dt)
			jobs = append(jobs, float64(active))
		}
		for ; i < len(edges) && edges[i].t == t; i++ {
			active += edges[i].delta
		}
		prev = t
	}

	if len(gaps) == 0 {
		return 0, 0, bdxplot.Computef("no time interval with running jobs")
	}

	mean = floats.Dot(gaps, jobs) / span

	var variance float64
	for i, dt := range gaps {
		d := jobs[i] - mean
		variance += dt * d * d
	}
	variance /= span
	stderr = math.Sqrt(variance) / math.Sqrt(float64(len(gaps)))
	return mean, stderr, nil
}

func (s Summary) String() string {
	return fmt.Sprintf(
		"EOT=%g mean-time=%.3e s span=%.0f s parallel-jobs=%.2f±%.2f",
		s.EOT, s.MeanAvgTime, s.TotalDuration, s.AverageParallelJobs, s.ParallelJobsStdError,
	)
}

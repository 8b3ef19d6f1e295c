// Command xmlenc-bench compares two `go test -bench` output files and
// reports whether the new run regressed past a threshold, the way the
// teacher's loadtest runner compared range/multipart throughput against
// a saved JSON baseline — except here the comparison itself is delegated
// to benchstat instead of a hand-rolled percentage check.
package main

import (
	"flag"
	"fmt"
	"os"

	"golang.org/x/perf/benchstat"
)

func main() {
	var (
		oldFile   = flag.String("old", "", "path to the baseline benchmark output file")
		newFile   = flag.String("new", "", "path to the candidate benchmark output file")
		threshold = flag.Float64("threshold", 10.0, "regression threshold percentage")
		alpha     = flag.Float64("alpha", 0.05, "statistical significance threshold for benchstat")
	)
	flag.Parse()

	if *oldFile == "" || *newFile == "" {
		fmt.Fprintln(os.Stderr, "xmlenc-bench: -old and -new are required")
		os.Exit(2)
	}

	oldData, err := os.ReadFile(*oldFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "xmlenc-bench: reading baseline: %v\n", err)
		os.Exit(1)
	}
	newData, err := os.ReadFile(*newFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "xmlenc-bench: reading candidate: %v\n", err)
		os.Exit(1)
	}

	c := &benchstat.Collection{
		Alpha:     *alpha,
		DeltaTest: benchstat.UTest,
	}
	if err := c.AddConfig("baseline", oldData); err != nil {
		fmt.Fprintf(os.Stderr, "xmlenc-bench: parsing baseline: %v\n", err)
		os.Exit(1)
	}
	if err := c.AddConfig("candidate", newData); err != nil {
		fmt.Fprintf(os.Stderr, "xmlenc-bench: parsing candidate: %v\n", err)
		os.Exit(1)
	}

	tables := c.Tables()
	benchstat.FormatText(os.Stdout, tables)

	regressed := detectRegressions(tables, *threshold)
	if len(regressed) > 0 {
		fmt.Fprintln(os.Stderr, "\nregressions beyond threshold:")
		for _, r := range regressed {
			fmt.Fprintf(os.Stderr, "  %s/%s: %+.1f%% (threshold %.1f%%)\n", r.metric, r.benchmark, r.pctDelta, *threshold)
		}
		os.Exit(1)
	}

	fmt.Println("\nno regression beyond threshold")
}

type regression struct {
	metric    string
	benchmark string
	pctDelta  float64
}

// detectRegressions compares the mean of the first config (baseline)
// against the second (candidate) for every row of every table, flagging
// any increase beyond thresholdPct. Benchmarks report "lower is better"
// metrics (ns/op, B/op, allocs/op), so a positive delta is a regression.
func detectRegressions(tables []*benchstat.Table, thresholdPct float64) []regression {
	var out []regression
	for _, t := range tables {
		for _, row := range t.Rows {
			if len(row.Metrics) < 2 {
				continue
			}
			baseline := row.Metrics[0].Mean
			candidate := row.Metrics[1].Mean
			if baseline <= 0 {
				continue
			}
			pctDelta := (candidate - baseline) / baseline * 100
			if pctDelta > thresholdPct {
				out = append(out, regression{metric: t.Metric, benchmark: row.Benchmark, pctDelta: pctDelta})
			}
		}
	}
	return out
}

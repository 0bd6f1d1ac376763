// Command validate performs integrity checks on a persisted raw dataset:
// record shape, aggregation invariants, composite construction, and the
// global scale bound. It runs the actual domain aggregation so a passing
// dataset is guaranteed to render without surprises.
//
// Usage:
//
//	go run ./cmd/validate -dataset data/dataset.json
package main

import (
	"flag"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"os"
	"slices"
	"time"

	"github.com/plutonik-a/berlin-wastewater-dashboard/internal/domain"
)

// defaultWeights mirrors the service's default catchment populations.
var defaultWeights = domain.PopulationWeights{
	"Ruhleben":     1600000,
	"Waßmannsdorf": 1100000,
	"Schönerlinde": 800000,
}

// phase tracks pass/fail for a validation phase.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

func main() {
	dataset := flag.String("dataset", "", "path to the raw dataset JSON file")
	flag.Parse()

	if *dataset == "" {
		flag.Usage()
		os.Exit(1)
	}

	if code := run(*dataset); code != 0 {
		os.Exit(code)
	}
}

func run(datasetPath string) int {
	fmt.Println("=== Wastewater Dataset Integrity Validation ===")
	fmt.Println()

	data, err := os.ReadFile(datasetPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: read dataset: %v\n", err)
		return 1
	}

	samples, err := domain.DecodeDataset(data)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: %v\n", err)
		return 1
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	stations := domain.Stations(samples)
	series := make(map[string][]domain.AggregatedPoint, len(stations))
	for _, st := range stations {
		series[st] = domain.AggregateStation(samples, st, logger)
	}

	phases := []*phase{
		validateSamples(samples),
		validateAggregation(series),
		validateComposite(series),
		validateScale(series),
	}

	fmt.Println()
	allPassed := true
	for _, p := range phases {
		status := "\033[32mPASS\033[0m"
		if !p.passed() {
			status = fmt.Sprintf("\033[31mFAIL (%d errors)\033[0m", len(p.errors))
			allPassed = false
		}
		fmt.Printf("  %-42s %s\n", p.name, status)
	}

	fmt.Println()
	fmt.Printf("Records: %d samples, %d stations\n", len(samples), len(stations))

	for _, p := range phases {
		if p.passed() {
			continue
		}
		fmt.Printf("\n--- %s ---\n", p.name)
		for i, e := range p.errors {
			fmt.Printf("  [%d] %s\n", i+1, e)
		}
	}

	if allPassed {
		fmt.Println("\nAll validations passed.")
		return 0
	}
	fmt.Println("\nValidation FAILED.")
	return 1
}

// ── Phase 1: Sample Shape ──
// Validates record-level fields and reports feed quirks without failing on
// the recoverable ones.

func validateSamples(samples []domain.RawSample) *phase {
	p := &phase{name: "Phase 1: Sample Shape"}

	if len(samples) == 0 {
		p.errorf("dataset contains no samples")
		return p
	}

	seen := map[string]int{}
	var malformedDates, withoutResults int

	for i, s := range samples {
		if s.Station == "" {
			p.errorf("sample %d: empty station", i)
		}
		if s.ExtractionDate == "" {
			p.errorf("sample %d: empty extraction_date", i)
			continue
		}
		if _, err := domain.ParseExtractionDate(s.ExtractionDate); err != nil {
			malformedDates++
		}
		if len(s.Results) == 0 {
			withoutResults++
		}

		key := s.Station + "|" + s.ExtractionDate
		seen[key]++
		if seen[key] == 2 {
			p.errorf("duplicate sample for %s on %s", s.Station, s.ExtractionDate)
		}
	}

	if malformedDates > 0 {
		fmt.Printf("  Note: %d sample(s) with malformed extraction dates (skipped by aggregation)\n", malformedDates)
	}
	if withoutResults > 0 {
		fmt.Printf("  Note: %d sample(s) without results\n", withoutResults)
	}

	return p
}

// ── Phase 2: Aggregation Invariants ──
// Every per-station series must keep each daily value inside its own min/max
// band and carry at most one point per date. Series follow sample encounter
// order; out-of-order dates are reported but are not a failure.

func validateAggregation(series map[string][]domain.AggregatedPoint) *phase {
	p := &phase{name: "Phase 2: Aggregation Invariants"}

	var outOfOrder int
	for station, points := range series {
		dates := make(map[time.Time]struct{}, len(points))
		for i, pt := range points {
			if pt.Min > pt.Value || pt.Value > pt.Max {
				p.errorf("%s %s: value %g outside [%g, %g]",
					station, pt.Date.Format(time.DateOnly), pt.Value, pt.Min, pt.Max)
			}
			if _, dup := dates[pt.Date]; dup {
				p.errorf("%s: duplicate aggregated point for %s",
					station, pt.Date.Format(time.DateOnly))
			}
			dates[pt.Date] = struct{}{}

			if i > 0 && !points[i-1].Date.Before(pt.Date) {
				outOfOrder++
			}
		}
	}

	if outOfOrder > 0 {
		fmt.Printf("  Note: %d out-of-order date transition(s) in station series\n", outOfOrder)
	}

	return p
}

// ── Phase 3: Composite Construction ──
// Re-runs the population-weighted composite over the three municipal plants
// and checks ordering, coverage, and the weighted-mean hull.

func validateComposite(series map[string][]domain.AggregatedPoint) *phase {
	p := &phase{name: "Phase 3: Composite Construction"}

	if err := defaultWeights.Validate(); err != nil {
		p.errorf("weights: %v", err)
		return p
	}

	weighted := make([]domain.StationSeries, 0, len(defaultWeights))
	for _, station := range slices.Sorted(maps.Keys(defaultWeights)) {
		weighted = append(weighted, domain.StationSeries{
			Station: station,
			Points:  series[station],
		})
	}

	composite := domain.WeightedComposite(defaultWeights, weighted[0], weighted[1], weighted[2])

	// Per-date value lookup for the contributing stations.
	byDate := map[time.Time]map[string]float64{}
	for _, ss := range weighted {
		for _, pt := range ss.Points {
			if byDate[pt.Date] == nil {
				byDate[pt.Date] = map[string]float64{}
			}
			byDate[pt.Date][ss.Station] = pt.Value
		}
	}

	for i, pt := range composite {
		if i > 0 && !composite[i-1].Date.Before(pt.Date) {
			p.errorf("composite dates not strictly ascending at index %d", i)
		}

		values := byDate[pt.Date]
		if len(values) == 0 {
			p.errorf("composite point %s has no contributing station", pt.Date.Format(time.DateOnly))
			continue
		}

		lo, hi := hull(values)
		if pt.Value < lo-1e-9 || pt.Value > hi+1e-9 {
			p.errorf("composite %s: value %g outside contributing range [%g, %g]",
				pt.Date.Format(time.DateOnly), pt.Value, lo, hi)
		}
	}

	// Every date covered by at least one weighted station must appear.
	if len(composite) != len(byDate) {
		p.errorf("composite has %d points, expected %d (one per covered date)",
			len(composite), len(byDate))
	}

	return p
}

// ── Phase 4: Scale Bound ──
// The global upper bound must dominate every aggregated daily value.

func validateScale(series map[string][]domain.AggregatedPoint) *phase {
	p := &phase{name: "Phase 4: Scale Bound"}

	all := make([][]domain.AggregatedPoint, 0, len(series))
	for _, points := range series {
		all = append(all, points)
	}
	bound := domain.GlobalUpperBound(all...)

	var hasPoints bool
	for station, points := range series {
		for _, pt := range points {
			hasPoints = true
			if pt.Value > bound {
				p.errorf("%s %s: value %g exceeds global upper bound %g",
					station, pt.Date.Format(time.DateOnly), pt.Value, bound)
			}
		}
	}

	if !hasPoints && bound != 0 {
		p.errorf("empty aggregation but upper bound is %g", bound)
	}

	fmt.Printf("  Note: global upper bound %g\n", bound)
	return p
}

// ── Helpers ──

func hull(values map[string]float64) (lo, hi float64) {
	first := true
	for _, v := range values {
		if first || v < lo {
			lo = v
		}
		if first || v > hi {
			hi = v
		}
		first = false
	}
	return lo, hi
}

// Command genmock generates a deterministic mock dataset in the
// health-monitoring API's raw sample format. It uses the actual domain
// package to aggregate the generated data, so the printed stats can be
// pasted straight into test assertions.
//
// Usage:
//
//	go run ./cmd/genmock -out data/mock/dataset.json -weeks 8 -seed 42
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"math/rand"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/plutonik-a/berlin-wastewater-dashboard/internal/domain"
)

var baseDate = time.Date(2022, time.February, 1, 0, 0, 0, 0, time.UTC)

// stationDef describes one treatment plant's synthetic signal: a baseline
// viral load and an amplitude for the seasonal swing.
type stationDef struct {
	name      string
	baseline  float64
	amplitude float64
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	out := flag.String("out", "", "output path for the raw JSON dataset")
	weeks := flag.Int("weeks", 8, "number of weeks to generate (two extractions per week)")
	seed := flag.Int64("seed", 42, "random seed for reproducible datasets")
	flag.Parse()

	if *out == "" {
		flag.Usage()
		return fmt.Errorf("missing required flag: -out")
	}

	stations := []stationDef{
		{name: "Ruhleben", baseline: 240, amplitude: 120},
		{name: "Waßmannsdorf", baseline: 180, amplitude: 90},
		{name: "Schönerlinde", baseline: 130, amplitude: 60},
		{name: "Stahnsdorf", baseline: 90, amplitude: 40},
	}

	rng := rand.New(rand.NewSource(*seed))
	samples := generate(rng, stations, *weeks)

	if err := writeJSON(*out, samples); err != nil {
		return fmt.Errorf("writing dataset: %w", err)
	}
	log.Printf("wrote %d samples: %s", len(samples), *out)

	printStats(samples)
	return nil
}

// generate produces two extractions per station per week, with the feed's
// real-world quirks mixed in: comma-decimal strings, a pan-assay control
// result per sample, occasional missing results, and a few malformed dates.
func generate(rng *rand.Rand, stations []stationDef, weeks int) []domain.RawSample {
	var samples []domain.RawSample

	for week := 0; week < weeks; week++ {
		for _, offset := range []int{0, 3} { // Monday and Thursday extractions
			date := baseDate.AddDate(0, 0, week*7+offset)

			for _, st := range stations {
				sample := domain.RawSample{
					Station:        st.name,
					ExtractionDate: domain.FormatExtractionDate(date),
				}

				switch {
				case rng.Float64() < 0.03:
					// Occasionally the feed delivers a sample without results.
				case rng.Float64() < 0.02:
					sample.ExtractionDate = fmt.Sprintf("%d.%02d.2022", 32+rng.Intn(8), rng.Intn(12)+1)
					sample.Results = buildResults(rng, st, week, weeks)
				default:
					sample.Results = buildResults(rng, st, week, weeks)
				}

				samples = append(samples, sample)
			}
		}
	}
	return samples
}

func buildResults(rng *rand.Rand, st stationDef, week, weeks int) []domain.TestResult {
	// A slow rise and fall across the generated window.
	progress := float64(week) / float64(max(weeks-1, 1))
	level := st.baseline + st.amplitude*(1-2*abs(progress-0.5))

	results := []domain.TestResult{
		assayResult(rng, "SARS-CoV-2 N1", level),
		assayResult(rng, "SARS-CoV-2 N2", level*0.92),
		// Pan-assay control, excluded from aggregation.
		assayResult(rng, "Coronaviren gesamt", level*1.4),
		// Unrelated pathogen tracked by the same lab.
		assayResult(rng, "Influenza A", level*0.3),
	}

	// Some samples carry an unnamed result with metadata only.
	if rng.Float64() < 0.1 {
		results = append(results, domain.TestResult{
			Parameters: []domain.TestParameter{
				{Name: strPtr("ct_mean"), Result: domain.Number(28.4)},
			},
		})
	}
	return results
}

func assayResult(rng *rand.Rand, name string, level float64) domain.TestResult {
	replicates := 2 + rng.Intn(2)
	params := make([]domain.TestParameter, 0, replicates+1)

	for i := 0; i < replicates; i++ {
		value := level * (0.85 + rng.Float64()*0.3)
		params = append(params, domain.TestParameter{
			Name:   strPtr("copy_number_" + strconv.Itoa(i+1)),
			Result: replicateValue(rng, value),
		})
	}

	// Non-replicate metadata parameter, ignored by aggregation.
	params = append(params, domain.TestParameter{
		Name:   strPtr("dilution"),
		Result: domain.Number(float64(1 + rng.Intn(4))),
	})

	return domain.TestResult{Name: strPtr(name), Parameters: params}
}

// replicateValue mimics the feed's mixed encoding: roughly half the values
// arrive as comma-decimal strings, the rest as JSON numbers.
func replicateValue(rng *rand.Rand, v float64) domain.FlexNumber {
	rounded := float64(int(v*10)) / 10
	if rng.Float64() < 0.5 {
		s := strconv.FormatFloat(rounded, 'f', 1, 64)
		return domain.NumberString(replaceDot(s))
	}
	return domain.Number(rounded)
}

func replaceDot(s string) string {
	b := []byte(s)
	for i := range b {
		if b[i] == '.' {
			b[i] = ','
		}
	}
	return string(b)
}

func strPtr(s string) *string { return &s }

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

func writeJSON(path string, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	return os.WriteFile(path, data, 0o600)
}

func printStats(samples []domain.RawSample) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	stations := domain.Stations(samples)

	fmt.Println("\n=== Stats for updating test assertions ===")
	fmt.Printf("Total samples: %d\n", len(samples))
	fmt.Printf("Stations (%d): %v\n", len(stations), stations)

	var allSeries [][]domain.AggregatedPoint
	for _, st := range stations {
		points := domain.AggregateStation(samples, st, logger)
		allSeries = append(allSeries, points)
		if len(points) == 0 {
			fmt.Printf("%s: no aggregated points\n", st)
			continue
		}
		first, last := points[0], points[len(points)-1]
		fmt.Printf("%s: %d points, first %s (value=%.2f min=%.2f max=%.2f), last %s (value=%.2f)\n",
			st, len(points),
			domain.FormatExtractionDate(first.Date), first.Value, first.Min, first.Max,
			domain.FormatExtractionDate(last.Date), last.Value)
	}

	fmt.Printf("Global upper bound: %g\n", domain.GlobalUpperBound(allSeries...))
}

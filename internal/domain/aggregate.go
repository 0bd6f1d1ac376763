package domain

import (
	"log/slog"
	"math"
	"strings"
	"time"
)

const (
	// pathogenMarker selects test results for the target pathogen.
	pathogenMarker = "SARS-CoV-2"

	// excludedMarker drops the pan-family cross-reactive assay, whose label
	// also carries the pathogen marker.
	excludedMarker = "Coronaviren"

	// copyNumberPrefix selects the quantitative replicate parameters of a
	// test result (copy_number_1, copy_number_2, ...).
	copyNumberPrefix = "copy_number"
)

// AggregatedPoint is one per-date, per-station summary. Min and Max span the
// test-level means that produced Value; Min <= Value <= Max always holds.
type AggregatedPoint struct {
	Date  time.Time `json:"date"`
	Value float64   `json:"value"`
	Min   float64   `json:"min"`
	Max   float64   `json:"max"`
}

// Stations returns the distinct station identifiers in the dataset, in
// first-seen order. A nil or empty dataset yields an empty list.
func Stations(samples []RawSample) []string {
	stations := make([]string, 0, 8)
	seen := make(map[string]struct{}, 8)
	for _, s := range samples {
		if _, ok := seen[s.Station]; ok {
			continue
		}
		seen[s.Station] = struct{}{}
		stations = append(stations, s.Station)
	}
	return stations
}

// AggregateStation reduces the dataset to one series of per-date points for
// the given station, in encounter order. Samples with malformed extraction
// dates are skipped with a diagnostic; samples without any usable replicate
// value produce no point. The input is never mutated.
func AggregateStation(samples []RawSample, station string, logger *slog.Logger) []AggregatedPoint {
	points := make([]AggregatedPoint, 0, len(samples))
	for _, s := range samples {
		date, err := ParseExtractionDate(s.ExtractionDate)
		if err != nil {
			logger.Warn("skipping sample with malformed extraction date",
				"station", s.Station,
				"extraction_date", s.ExtractionDate,
			)
			continue
		}
		if s.Station != station {
			continue
		}

		means := testLevelMeans(s.Results)
		if len(means) == 0 {
			continue
		}

		mn, mx := minMax(means)
		points = append(points, AggregatedPoint{
			Date:  date,
			Value: mean(means),
			Min:   mn,
			Max:   mx,
		})
	}
	return points
}

// testLevelMeans collects one mean per relevant test result. A result is
// relevant when its name is present, contains the pathogen marker, and does
// not contain the excluded pan-assay marker. Results without a single
// parseable replicate contribute nothing.
func testLevelMeans(results []TestResult) []float64 {
	var means []float64
	for _, r := range results {
		if r.Name == nil {
			continue
		}
		name := *r.Name
		if !strings.Contains(name, pathogenMarker) || strings.Contains(name, excludedMarker) {
			continue
		}
		values := replicateValues(r.Parameters)
		if len(values) == 0 {
			continue
		}
		means = append(means, mean(values))
	}
	return means
}

// replicateValues extracts the parseable copy-number replicates of one test
// result. Unnamed parameters, non-replicate parameters, and values that fail
// normalization are discarded silently.
func replicateValues(params []TestParameter) []float64 {
	var values []float64
	for _, p := range params {
		if p.Name == nil || !strings.HasPrefix(*p.Name, copyNumberPrefix) {
			continue
		}
		v, ok := p.Result.Float64()
		if !ok {
			continue
		}
		values = append(values, v)
	}
	return values
}

// GlobalUpperBound computes a shared axis maximum across station series: the
// largest point value padded by 10% and rounded to the nearest integer.
// Returns 0 when no series contains a point. Recomputed on every call; the
// bound must track dataset changes.
func GlobalUpperBound(series ...[]AggregatedPoint) float64 {
	var maxValue float64
	var found bool
	for _, points := range series {
		for _, p := range points {
			if !found || p.Value > maxValue {
				maxValue = p.Value
				found = true
			}
		}
	}
	if !found {
		return 0
	}
	return math.Round(maxValue * 1.10)
}

func mean(values []float64) float64 {
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

func minMax(values []float64) (float64, float64) {
	mn, mx := values[0], values[0]
	for _, v := range values[1:] {
		if v < mn {
			mn = v
		}
		if v > mx {
			mx = v
		}
	}
	return mn, mx
}

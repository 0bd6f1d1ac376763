package domain

import (
	"fmt"
	"slices"
	"time"
)

// WeightedPoint has the shape of an AggregatedPoint; a composite scalar has
// no spread, so Min == Max == Value.
type WeightedPoint = AggregatedPoint

// PopulationWeights maps the three contributing stations to the population
// of their catchment areas. Constructed once at startup from configuration
// and never mutated; it is passed into WeightedComposite as a value rather
// than read as ambient state.
type PopulationWeights map[string]float64

// Validate checks the table covers exactly three stations with positive
// weights.
func (w PopulationWeights) Validate() error {
	if len(w) != 3 {
		return fmt.Errorf("population weights: want exactly 3 stations, got %d", len(w))
	}
	for station, weight := range w {
		if station == "" {
			return fmt.Errorf("population weights: empty station name")
		}
		if weight <= 0 {
			return fmt.Errorf("population weights: station %q has non-positive weight %g", station, weight)
		}
	}
	return nil
}

// StationSeries pairs a station identifier with its aggregated series, so
// the composite builder can look up the station's weight.
type StationSeries struct {
	Station string
	Points  []AggregatedPoint
}

// WeightedComposite combines the series of the three contributing stations
// into one population-weighted series. For every date appearing in any input
// series, the composite value is the weighted mean over the stations that
// reported on that date; the weight total adapts to partial coverage, so a
// date with two reporting plants is normalized by those two weights only.
// Dates where no weighted station reported are excluded. Output is in
// ascending date order.
func WeightedComposite(weights PopulationWeights, a, b, c StationSeries) []WeightedPoint {
	series := []StationSeries{a, b, c}

	dateSet := make(map[time.Time]struct{})
	values := make([]map[time.Time]float64, len(series))
	for i, s := range series {
		values[i] = make(map[time.Time]float64, len(s.Points))
		for _, p := range s.Points {
			values[i][p.Date] = p.Value
			dateSet[p.Date] = struct{}{}
		}
	}

	dates := make([]time.Time, 0, len(dateSet))
	for d := range dateSet {
		dates = append(dates, d)
	}
	slices.SortFunc(dates, time.Time.Compare)

	composite := make([]WeightedPoint, 0, len(dates))
	for _, date := range dates {
		var sum, weightTotal float64
		for i, s := range series {
			v, ok := values[i][date]
			if !ok {
				continue
			}
			weight, ok := weights[s.Station]
			if !ok {
				continue
			}
			sum += v * weight
			weightTotal += weight
		}
		// Guard the division: a date covered only by unweighted stations
		// contributes no point rather than a NaN.
		if weightTotal == 0 {
			continue
		}
		v := sum / weightTotal
		composite = append(composite, WeightedPoint{Date: date, Value: v, Min: v, Max: v})
	}
	return composite
}

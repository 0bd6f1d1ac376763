package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testWeights() PopulationWeights {
	return PopulationWeights{
		stationRuhleben:      1_600_000,
		stationWassmannsdorf: 1_100_000,
		stationSchoenerlinde: 800_000,
	}
}

func day(d int) time.Time {
	return time.Date(2022, time.February, d, 0, 0, 0, 0, time.UTC)
}

func seriesOf(station string, points ...AggregatedPoint) StationSeries {
	return StationSeries{Station: station, Points: points}
}

func pointAt(d int, v float64) AggregatedPoint {
	return AggregatedPoint{Date: day(d), Value: v, Min: v, Max: v}
}

func TestPopulationWeights_Validate(t *testing.T) {
	require.NoError(t, testWeights().Validate())

	t.Run("wrong station count", func(t *testing.T) {
		err := PopulationWeights{stationRuhleben: 1}.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "exactly 3")
	})

	t.Run("non-positive weight", func(t *testing.T) {
		w := testWeights()
		w[stationRuhleben] = 0
		require.Error(t, w.Validate())
	})

	t.Run("empty station name", func(t *testing.T) {
		w := PopulationWeights{"": 1, "a": 2, "b": 3}
		require.Error(t, w.Validate())
	})
}

func TestWeightedComposite(t *testing.T) {
	weights := testWeights()

	t.Run("full coverage uses all three weights", func(t *testing.T) {
		composite := WeightedComposite(weights,
			seriesOf(stationRuhleben, pointAt(1, 100)),
			seriesOf(stationWassmannsdorf, pointAt(1, 200)),
			seriesOf(stationSchoenerlinde, pointAt(1, 300)),
		)

		require.Len(t, composite, 1)
		expected := (100*1_600_000.0 + 200*1_100_000.0 + 300*800_000.0) / (1_600_000.0 + 1_100_000.0 + 800_000.0)
		assert.InDelta(t, expected, composite[0].Value, 1e-9)
		assert.Equal(t, day(1), composite[0].Date)
	})

	t.Run("partial coverage renormalizes over reporting stations", func(t *testing.T) {
		composite := WeightedComposite(weights,
			seriesOf(stationRuhleben, pointAt(1, 100)),
			seriesOf(stationWassmannsdorf, pointAt(1, 200)),
			seriesOf(stationSchoenerlinde), // did not report on day 1
		)

		require.Len(t, composite, 1)
		expected := (100*1_600_000.0 + 200*1_100_000.0) / (1_600_000.0 + 1_100_000.0)
		assert.InDelta(t, expected, composite[0].Value, 1e-9)
	})

	t.Run("dates union sorted ascending", func(t *testing.T) {
		composite := WeightedComposite(weights,
			seriesOf(stationRuhleben, pointAt(5, 100), pointAt(1, 110)),
			seriesOf(stationWassmannsdorf, pointAt(3, 200)),
			seriesOf(stationSchoenerlinde, pointAt(2, 300), pointAt(5, 310)),
		)

		require.Len(t, composite, 4)
		for i := 1; i < len(composite); i++ {
			assert.True(t, composite[i-1].Date.Before(composite[i].Date),
				"composite must be in ascending date order")
		}
		assert.Equal(t, []time.Time{day(1), day(2), day(3), day(5)},
			[]time.Time{composite[0].Date, composite[1].Date, composite[2].Date, composite[3].Date})
	})

	t.Run("date covered only by unweighted station is dropped", func(t *testing.T) {
		composite := WeightedComposite(weights,
			seriesOf("Stahnsdorf", pointAt(1, 100)),
			seriesOf(stationWassmannsdorf, pointAt(2, 200)),
			seriesOf(stationSchoenerlinde),
		)

		require.Len(t, composite, 1)
		assert.Equal(t, day(2), composite[0].Date)
		assert.Equal(t, 200.0, composite[0].Value)
	})

	t.Run("no spread in composite points", func(t *testing.T) {
		composite := WeightedComposite(weights,
			seriesOf(stationRuhleben, pointAt(1, 100)),
			seriesOf(stationWassmannsdorf, pointAt(1, 200)),
			seriesOf(stationSchoenerlinde, pointAt(1, 300)),
		)

		require.Len(t, composite, 1)
		assert.Equal(t, composite[0].Value, composite[0].Min)
		assert.Equal(t, composite[0].Value, composite[0].Max)
	})

	t.Run("value stays within hull of contributing values", func(t *testing.T) {
		composite := WeightedComposite(weights,
			seriesOf(stationRuhleben, pointAt(1, 80), pointAt(2, 120)),
			seriesOf(stationWassmannsdorf, pointAt(1, 310)),
			seriesOf(stationSchoenerlinde, pointAt(2, 95), pointAt(3, 400)),
		)

		hulls := map[int][2]float64{1: {80, 310}, 2: {95, 120}, 3: {400, 400}}
		require.Len(t, composite, 3)
		for _, p := range composite {
			hull := hulls[p.Date.Day()]
			assert.GreaterOrEqual(t, p.Value, hull[0])
			assert.LessOrEqual(t, p.Value, hull[1])
		}
	})

	t.Run("empty inputs yield empty composite", func(t *testing.T) {
		composite := WeightedComposite(weights,
			seriesOf(stationRuhleben),
			seriesOf(stationWassmannsdorf),
			seriesOf(stationSchoenerlinde),
		)
		assert.Empty(t, composite)
	})
}

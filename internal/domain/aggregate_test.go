package domain

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	stationRuhleben      = "Ruhleben"
	stationSchoenerlinde = "Schönerlinde"
	stationWassmannsdorf = "Waßmannsdorf"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func strPtr(s string) *string { return &s }

// sampleWithResult builds a sample with one pathogen-specific test result
// holding the given replicate values.
func sampleWithResult(station, date string, values ...FlexNumber) RawSample {
	params := make([]TestParameter, len(values))
	for i, v := range values {
		params[i] = TestParameter{Name: strPtr("copy_number_" + string(rune('1'+i))), Result: v}
	}
	return RawSample{
		Station:        station,
		ExtractionDate: date,
		Results: []TestResult{
			{Name: strPtr("SARS-CoV-2 N1"), Parameters: params},
		},
	}
}

func TestStations(t *testing.T) {
	t.Run("distinct in first-seen order", func(t *testing.T) {
		samples := []RawSample{
			{Station: stationRuhleben},
			{Station: stationWassmannsdorf},
			{Station: stationRuhleben},
			{Station: stationSchoenerlinde},
			{Station: stationWassmannsdorf},
		}

		assert.Equal(t, []string{stationRuhleben, stationWassmannsdorf, stationSchoenerlinde}, Stations(samples))
	})

	t.Run("nil input yields empty set", func(t *testing.T) {
		assert.NotPanics(t, func() {
			assert.Empty(t, Stations(nil))
		})
	})
}

func TestAggregateStation(t *testing.T) {
	logger := discardLogger()

	t.Run("single result averages its replicates", func(t *testing.T) {
		samples := []RawSample{
			sampleWithResult(stationRuhleben, "01.02.2022", NumberString("100,0"), NumberString("200,0")),
		}

		points := AggregateStation(samples, stationRuhleben, logger)
		require.Len(t, points, 1)
		assert.Equal(t, time.Date(2022, time.February, 1, 0, 0, 0, 0, time.UTC), points[0].Date)
		assert.Equal(t, 150.0, points[0].Value)
		assert.Equal(t, 150.0, points[0].Min)
		assert.Equal(t, 150.0, points[0].Max)
	})

	t.Run("multiple results spread min and max", func(t *testing.T) {
		sample := sampleWithResult(stationRuhleben, "01.02.2022", Number(100), Number(200))
		sample.Results = append(sample.Results, TestResult{
			Name: strPtr("SARS-CoV-2 E-Gen"),
			Parameters: []TestParameter{
				{Name: strPtr("copy_number_1"), Result: Number(250)},
			},
		})

		points := AggregateStation([]RawSample{sample}, stationRuhleben, logger)
		require.Len(t, points, 1)
		assert.Equal(t, 200.0, points[0].Value)
		assert.Equal(t, 150.0, points[0].Min)
		assert.Equal(t, 250.0, points[0].Max)
	})

	t.Run("sample with only unparseable replicates emits no point", func(t *testing.T) {
		samples := []RawSample{
			sampleWithResult(stationRuhleben, "01.02.2022", NumberString("nicht auswertbar"), NumberString("")),
		}

		assert.Empty(t, AggregateStation(samples, stationRuhleben, logger))
	})

	t.Run("result with partial replicate failures keeps the rest", func(t *testing.T) {
		samples := []RawSample{
			sampleWithResult(stationRuhleben, "01.02.2022", NumberString("x"), Number(120)),
		}

		points := AggregateStation(samples, stationRuhleben, logger)
		require.Len(t, points, 1)
		assert.Equal(t, 120.0, points[0].Value)
	})

	t.Run("malformed extraction date skips the sample", func(t *testing.T) {
		samples := []RawSample{
			sampleWithResult(stationRuhleben, "31.02.2022", Number(100)),
			sampleWithResult(stationRuhleben, "not a date", Number(100)),
			sampleWithResult(stationRuhleben, "02.02.2022", Number(300)),
		}

		points := AggregateStation(samples, stationRuhleben, logger)
		require.Len(t, points, 1)
		assert.Equal(t, 300.0, points[0].Value)
	})

	t.Run("other stations are filtered out", func(t *testing.T) {
		samples := []RawSample{
			sampleWithResult(stationSchoenerlinde, "01.02.2022", Number(999)),
			sampleWithResult(stationRuhleben, "01.02.2022", Number(100)),
		}

		points := AggregateStation(samples, stationRuhleben, logger)
		require.Len(t, points, 1)
		assert.Equal(t, 100.0, points[0].Value)
	})

	t.Run("pan-assay and unnamed results are ignored", func(t *testing.T) {
		sample := RawSample{
			Station:        stationRuhleben,
			ExtractionDate: "01.02.2022",
			Results: []TestResult{
				{Name: strPtr("SARS-CoV-2 / humane Coronaviren (Pan-Assay)"), Parameters: []TestParameter{
					{Name: strPtr("copy_number_1"), Result: Number(9999)},
				}},
				{Parameters: []TestParameter{
					{Name: strPtr("copy_number_1"), Result: Number(8888)},
				}},
				{Name: strPtr("Influenza A"), Parameters: []TestParameter{
					{Name: strPtr("copy_number_1"), Result: Number(7777)},
				}},
				{Name: strPtr("SARS-CoV-2 N1"), Parameters: []TestParameter{
					{Name: strPtr("copy_number_1"), Result: Number(140)},
				}},
			},
		}

		points := AggregateStation([]RawSample{sample}, stationRuhleben, logger)
		require.Len(t, points, 1)
		assert.Equal(t, 140.0, points[0].Value)
	})

	t.Run("non-replicate parameters are ignored", func(t *testing.T) {
		sample := RawSample{
			Station:        stationRuhleben,
			ExtractionDate: "01.02.2022",
			Results: []TestResult{
				{Name: strPtr("SARS-CoV-2 N1"), Parameters: []TestParameter{
					{Name: strPtr("ct_value"), Result: Number(31.2)},
					{Result: Number(55)},
					{Name: strPtr("copy_number_1"), Result: Number(160)},
				}},
			},
		}

		points := AggregateStation([]RawSample{sample}, stationRuhleben, logger)
		require.Len(t, points, 1)
		assert.Equal(t, 160.0, points[0].Value)
	})

	t.Run("station with no retained samples yields empty series", func(t *testing.T) {
		samples := []RawSample{
			sampleWithResult(stationSchoenerlinde, "01.02.2022", Number(100)),
		}

		assert.Empty(t, AggregateStation(samples, stationWassmannsdorf, logger))
		assert.Empty(t, AggregateStation(nil, stationWassmannsdorf, logger))
	})

	t.Run("pure function, identical output on repeat calls", func(t *testing.T) {
		samples := []RawSample{
			sampleWithResult(stationRuhleben, "01.02.2022", NumberString("100,5"), Number(200)),
			sampleWithResult(stationRuhleben, "05.02.2022", Number(180)),
			sampleWithResult(stationRuhleben, "bad date", Number(999)),
		}

		first := AggregateStation(samples, stationRuhleben, logger)
		second := AggregateStation(samples, stationRuhleben, logger)
		if diff := cmp.Diff(first, second); diff != "" {
			t.Fatalf("repeat call mismatch (-first +second):\n%s", diff)
		}
	})

	t.Run("min <= value <= max for every point", func(t *testing.T) {
		samples := []RawSample{
			sampleWithResult(stationRuhleben, "01.02.2022", Number(10), Number(400)),
			sampleWithResult(stationRuhleben, "02.02.2022", NumberString("87,3")),
			sampleWithResult(stationRuhleben, "03.02.2022", Number(250), NumberString("99,9"), Number(123)),
		}

		points := AggregateStation(samples, stationRuhleben, logger)
		require.NotEmpty(t, points)
		for _, p := range points {
			assert.LessOrEqual(t, p.Min, p.Value)
			assert.LessOrEqual(t, p.Value, p.Max)
		}
	})
}

func TestGlobalUpperBound(t *testing.T) {
	mkSeries := func(values ...float64) []AggregatedPoint {
		points := make([]AggregatedPoint, len(values))
		for i, v := range values {
			points[i] = AggregatedPoint{Value: v}
		}
		return points
	}

	t.Run("pads the global maximum by ten percent", func(t *testing.T) {
		bound := GlobalUpperBound(mkSeries(100, 250), mkSeries(400), mkSeries())
		assert.Equal(t, 440.0, bound)
	})

	t.Run("rounds to the nearest integer", func(t *testing.T) {
		assert.Equal(t, 96.0, GlobalUpperBound(mkSeries(87)))   // 95.7
		assert.Equal(t, 138.0, GlobalUpperBound(mkSeries(125))) // 137.5
	})

	t.Run("empty input yields zero", func(t *testing.T) {
		assert.Equal(t, 0.0, GlobalUpperBound())
		assert.Equal(t, 0.0, GlobalUpperBound(mkSeries(), nil))
	})

	t.Run("non-decreasing in the maximum", func(t *testing.T) {
		prev := 0.0
		for _, maxValue := range []float64{1, 5, 50, 500, 5000} {
			bound := GlobalUpperBound(mkSeries(maxValue/2, maxValue))
			assert.GreaterOrEqual(t, bound, prev)
			prev = bound
		}
	})
}

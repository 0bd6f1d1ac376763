// Command render draws the dashboard chart as a PNG: one line per station
// plus the population-weighted composite, with the y-axis scaled to the
// global upper bound so every station fits the same frame.
//
// Usage:
//
//	go run ./cmd/render -dataset data/dataset.json -out dashboard.png
package main

import (
	"bytes"
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/plutonik-a/berlin-wastewater-dashboard/internal/domain"
	"github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"
)

var weights = domain.PopulationWeights{
	"Ruhleben":     1600000,
	"Waßmannsdorf": 1100000,
	"Schönerlinde": 800000,
}

var palette = []drawing.Color{
	drawing.ColorBlue,
	drawing.ColorGreen,
	drawing.ColorRed,
	drawing.ColorFromHex("b8860b"),
	drawing.ColorFromHex("8a2be2"),
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	dataset := flag.String("dataset", "", "path to the raw dataset JSON file")
	out := flag.String("out", "dashboard.png", "output path for the rendered PNG")
	flag.Parse()

	if *dataset == "" {
		flag.Usage()
		return fmt.Errorf("missing required flag: -dataset")
	}

	data, err := os.ReadFile(*dataset)
	if err != nil {
		return fmt.Errorf("read dataset: %w", err)
	}
	samples, err := domain.DecodeDataset(data)
	if err != nil {
		return err
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	stations := domain.Stations(samples)
	series := make(map[string][]domain.AggregatedPoint, len(stations))
	all := make([][]domain.AggregatedPoint, 0, len(stations))
	for _, st := range stations {
		points := domain.AggregateStation(samples, st, logger)
		series[st] = points
		all = append(all, points)
	}

	weighted := make([]domain.StationSeries, 0, len(weights))
	for _, st := range slices.Sorted(maps.Keys(weights)) {
		weighted = append(weighted, domain.StationSeries{Station: st, Points: series[st]})
	}
	composite := domain.WeightedComposite(weights, weighted[0], weighted[1], weighted[2])

	png, err := renderChart(stations, series, composite, domain.GlobalUpperBound(all...))
	if err != nil {
		return err
	}

	if dir := filepath.Dir(*out); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	if err := os.WriteFile(*out, png, 0o600); err != nil {
		return fmt.Errorf("write chart: %w", err)
	}
	log.Printf("wrote chart: %s (%d stations, %d composite points)", *out, len(stations), len(composite))
	return nil
}

func renderChart(stations []string, series map[string][]domain.AggregatedPoint, composite []domain.WeightedPoint, upperBound float64) ([]byte, error) {
	var chartSeries []chart.Series

	for i, st := range stations {
		points := series[st]
		if len(points) == 0 {
			continue
		}
		xs, ys := toXY(points)
		chartSeries = append(chartSeries, chart.TimeSeries{
			Name:    st,
			XValues: xs,
			YValues: ys,
			Style: chart.Style{
				StrokeColor: palette[i%len(palette)],
				StrokeWidth: 2,
			},
		})
	}

	if len(composite) > 0 {
		xs, ys := toXY(composite)
		chartSeries = append(chartSeries, chart.TimeSeries{
			Name:    "Composite (population-weighted)",
			XValues: xs,
			YValues: ys,
			Style: chart.Style{
				StrokeColor:     drawing.ColorBlack,
				StrokeWidth:     3,
				StrokeDashArray: []float64{5.0, 5.0},
			},
		})
	}

	if len(chartSeries) == 0 {
		return nil, fmt.Errorf("nothing to render: no aggregated points")
	}

	graph := chart.Chart{
		Title: "SARS-CoV-2 viral load in Berlin wastewater",
		Background: chart.Style{
			Padding: chart.Box{
				Top:    40,
				Left:   20,
				Right:  20,
				Bottom: 40,
			},
			FillColor: drawing.ColorWhite,
		},
		Width:  2048,
		Height: 1024,
		XAxis: chart.XAxis{
			Name:           "Extraction date",
			ValueFormatter: chart.TimeValueFormatterWithFormat("02.01.2006"),
		},
		YAxis: chart.YAxis{
			Name: "Copies per sample (mean of replicates)",
			Range: &chart.ContinuousRange{
				Min: 0.0,
				Max: upperBound,
			},
		},
		Series: chartSeries,
	}
	graph.Elements = []chart.Renderable{chart.Legend(&graph)}

	buffer := bytes.NewBuffer([]byte{})
	if err := graph.Render(chart.PNG, buffer); err != nil {
		return nil, fmt.Errorf("error rendering chart: %v", err)
	}
	return buffer.Bytes(), nil
}

func toXY(points []domain.AggregatedPoint) ([]time.Time, []float64) {
	xs := make([]time.Time, len(points))
	ys := make([]float64, len(points))
	for i, p := range points {
		xs[i] = p.Date
		ys[i] = p.Value
	}
	return xs, ys
}

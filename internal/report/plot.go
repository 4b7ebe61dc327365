package report

import (
	"fmt"
	"io"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/Sumatoshi-tech/prunefang/internal/journal"
)

// plot dimensions.
const (
	plotWidth  = "900px"
	plotHeight = "500px"
)

// msPerSecond converts sample timestamps for axis labels.
const msPerSecond = 1000.0

// WritePlot renders the committed-snapshot weight over elapsed time as a
// standalone HTML line chart.
func WritePlot(w io.Writer, initialWeight int, samples []journal.Sample) error {
	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{
			PageTitle: "prunefang: size over time",
			Width:     plotWidth,
			Height:    plotHeight,
		}),
		charts.WithTitleOpts(opts.Title{
			Title:    "Candidate size over time",
			Subtitle: "One point per committed replacement",
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithXAxisOpts(opts.XAxis{Name: "Time (s)"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "Size (bytes)"}),
	)

	labels := make([]string, 0, len(samples)+1)
	points := make([]opts.LineData, 0, len(samples)+1)

	labels = append(labels, "0.000")
	points = append(points, opts.LineData{Value: initialWeight})

	for _, s := range samples {
		labels = append(labels, fmt.Sprintf("%.3f", float64(s.ElapsedMS)/msPerSecond))
		points = append(points, opts.LineData{Value: s.Weight})
	}

	line.SetXAxis(labels)
	line.AddSeries("weight", points,
		charts.WithLineChartOpts(opts.LineChart{Step: "end"}),
	)

	err := line.Render(w)
	if err != nil {
		return fmt.Errorf("render plot: %w", err)
	}

	return nil
}

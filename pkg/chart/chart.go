package chart

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/sguter90/watermaestro/pkg/models"
	gochart "github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"
)

// Default PNG dimensions in pixels, used by RenderPNG when a size is not positive
const (
	DefaultWidth  = 960
	DefaultHeight = 400

	labelFormat = "15:04"
)

// ErrNoData is returned when a chart has no labels to plot
var ErrNoData = errors.New("chart has no data")

// Dataset is one plotted line, index-aligned with ChartData.Labels
type Dataset struct {
	Parameter models.Parameter `json:"parameter"`
	Label     string           `json:"label"`
	Color     string           `json:"color"`
	Values    []float64        `json:"values"`
}

// ChartData is the renderable view of one user's series
type ChartData struct {
	UserID   string      `json:"user_id"`
	UserName string      `json:"user_name"`
	Labels   []time.Time `json:"labels"`
	Datasets []Dataset   `json:"datasets"`
}

// BuildChartData flattens a profile into parallel label and value arrays.
// Labels come from the pH history; every parameter shares the same timeline.
func BuildChartData(profile models.UserProfile) ChartData {
	data := ChartData{
		UserID:   profile.ID,
		UserName: profile.Name,
		Labels:   []time.Time{},
		Datasets: make([]Dataset, 0, len(models.Parameters)),
	}

	if ph, ok := profile.Data[models.ParameterPH]; ok && ph != nil {
		data.Labels = ph.Times()
	}

	for _, p := range models.Parameters {
		info, _ := p.Info()
		ds := Dataset{
			Parameter: p,
			Label:     info.Label,
			Color:     info.Color,
			Values:    []float64{},
		}
		if ts, ok := profile.Data[p]; ok && ts != nil {
			ds.Values = ts.Values()
		}
		data.Datasets = append(data.Datasets, ds)
	}
	return data
}

// FormatLabels returns the labels as HH:MM strings
func (d ChartData) FormatLabels() []string {
	out := make([]string, len(d.Labels))
	for i, t := range d.Labels {
		out[i] = t.Format(labelFormat)
	}
	return out
}

// RenderPNG draws one line per dataset and writes the PNG to w.
// Non-positive dimensions fall back to the defaults.
func RenderPNG(w io.Writer, data ChartData, width, height int) error {
	if len(data.Labels) == 0 {
		return ErrNoData
	}
	if width <= 0 {
		width = DefaultWidth
	}
	if height <= 0 {
		height = DefaultHeight
	}

	series := make([]gochart.Series, 0, len(data.Datasets))
	for _, ds := range data.Datasets {
		if len(ds.Values) != len(data.Labels) {
			return fmt.Errorf("dataset %s has %d values for %d labels", ds.Parameter, len(ds.Values), len(data.Labels))
		}

		xs, ys := data.Labels, ds.Values
		if len(xs) == 1 {
			// go-chart needs a non-zero x range
			xs = []time.Time{xs[0], xs[0].Add(time.Minute)}
			ys = []float64{ys[0], ys[0]}
		}

		series = append(series, gochart.TimeSeries{
			Name: ds.Label,
			Style: gochart.Style{
				StrokeColor: parseColor(ds.Color),
				StrokeWidth: 2,
			},
			XValues: xs,
			YValues: ys,
		})
	}

	graph := gochart.Chart{
		Title:      data.UserName,
		Width:      width,
		Height:     height,
		Background: gochart.Style{Padding: gochart.Box{Top: 40, Left: 16, Right: 12, Bottom: 16}},
		XAxis: gochart.XAxis{
			ValueFormatter: gochart.TimeValueFormatterWithFormat(labelFormat),
		},
		Series: series,
	}
	graph.Elements = []gochart.Renderable{gochart.Legend(&graph)}

	if err := graph.Render(gochart.PNG, w); err != nil {
		return fmt.Errorf("failed to render chart for %s: %w", data.UserID, err)
	}
	return nil
}

func parseColor(hex string) drawing.Color {
	hex = strings.TrimPrefix(hex, "#")
	if hex == "" {
		return gochart.ColorBlue
	}
	return drawing.ColorFromHex(hex)
}

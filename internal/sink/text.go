package sink

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"

	"nathanbeddoewebdev/cloudharvest/internal/domain"

	"github.com/charmbracelet/lipgloss"
	"github.com/guptarohit/asciigraph"
)

const separator = "-------------------------------------------------------------"

// Text prints records as human-readable blocks.
type Text struct {
	w      io.Writer
	chart  bool
	header lipgloss.Style
	muted  lipgloss.Style
	failed lipgloss.Style
}

// NewText returns a Text sink writing to w. Colors are only emitted when w
// is a terminal. With chart set, series of two or more present samples get
// an ASCII plot.
func NewText(w io.Writer, chart bool) *Text {
	r := lipgloss.NewRenderer(w)
	return &Text{
		w:      w,
		chart:  chart,
		header: r.NewStyle().Bold(true).Foreground(lipgloss.Color("12")),
		muted:  r.NewStyle().Foreground(lipgloss.Color("8")),
		failed: r.NewStyle().Foreground(lipgloss.Color("9")),
	}
}

func (t *Text) Write(_ context.Context, rec domain.Record) error {
	var b strings.Builder

	b.WriteString(t.header.Render(fmt.Sprintf("%s %s  metric: %s  unit: %s", label(rec.Kind), rec.Subject, rec.Metric, rec.Unit)))
	b.WriteByte('\n')

	switch {
	case rec.Failed():
		b.WriteString(t.failed.Render("  error: " + rec.Err))
		b.WriteByte('\n')
	case rec.Series.Len() == 0:
		b.WriteString(t.muted.Render("  no datapoints"))
		b.WriteByte('\n')
	default:
		tw := tabwriter.NewWriter(&b, 0, 0, 2, ' ', 0)
		for _, s := range rec.Series.Samples {
			fmt.Fprintf(tw, "  %s\t%s\n", s.Timestamp, formatValue(s.Value))
		}
		tw.Flush()
		if rec.Series.Partial {
			b.WriteString(t.muted.Render("  (partial: timestamp and value counts differed)"))
			b.WriteByte('\n')
		}
		if t.chart {
			if data := present(rec.Series); len(data) >= 2 {
				b.WriteString(asciigraph.Plot(data,
					asciigraph.Height(6),
					asciigraph.Width(60),
					asciigraph.Offset(4),
					asciigraph.Caption(string(rec.Unit)),
				))
				b.WriteByte('\n')
			}
		}
	}

	b.WriteString(separator)
	b.WriteByte('\n')

	_, err := io.WriteString(t.w, b.String())
	return err
}

func (t *Text) Close() error { return nil }

func label(kind domain.ResourceKind) string {
	switch kind {
	case domain.KindCompute:
		return "Instance:"
	case domain.KindStorage:
		return "Volume:"
	default:
		return "Host:"
	}
}

func formatValue(v *float64) string {
	if v == nil {
		return "-"
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}

func present(s domain.SampleSeries) []float64 {
	data := make([]float64, 0, s.Len())
	for _, smp := range s.Samples {
		if smp.Value != nil {
			data = append(data, *smp.Value)
		}
	}
	return data
}

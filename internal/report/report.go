// Package report renders the human-facing output of a reduction run: the
// summary table, the original-vs-reduced diff, and the size-over-time plot.
package report

import (
	"fmt"
	"io"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/sergi/go-diff/diffmatchpatch"

	"github.com/Sumatoshi-tech/prunefang/internal/engine"
	"github.com/Sumatoshi-tech/prunefang/internal/oracle"
)

const percentageValue = 100

// Summary holds everything the stats table displays.
type Summary struct {
	Language string
	Stats    engine.Stats
	Cache    *oracle.CacheStats // nil when the verdict cache is disabled
}

// WriteSummary renders the run statistics as a table.
func WriteSummary(w io.Writer, s Summary) {
	header := color.New(color.Bold)
	_, _ = header.Fprintln(w, "Reduction summary")

	reduction := 0.0
	if s.Stats.InitialWeight > 0 {
		reduction = float64(s.Stats.InitialWeight-s.Stats.FinalWeight) / float64(s.Stats.InitialWeight) * percentageValue
	}

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.AppendRows([]table.Row{
		{"Language", s.Language},
		{"Initial size", humanize.Bytes(uint64(s.Stats.InitialWeight))},
		{"Final size", humanize.Bytes(uint64(s.Stats.FinalWeight))},
		{"Reduction", fmt.Sprintf("%.1f%%", reduction)},
		{"Oracle calls", s.Stats.OracleCalls},
		{"Commits", s.Stats.Commits},
		{"Lost races", s.Stats.Conflicts},
		{"Stale drops", s.Stats.StaleDrops},
		{"Duration", s.Stats.Duration.Round(time.Millisecond)},
	})

	if s.Cache != nil {
		t.AppendRow(table.Row{"Cache hit rate", fmt.Sprintf("%.1f%%", s.Cache.HitRate()*percentageValue)})
	}

	t.Render()
}

// WriteDiff renders a character-level diff between the original and the
// reduced source.
func WriteDiff(w io.Writer, original, reduced []byte) {
	dmp := diffmatchpatch.New()
	diffs := dmp.DiffMain(string(original), string(reduced), false)
	diffs = dmp.DiffCleanupSemantic(diffs)

	_, _ = fmt.Fprintln(w, dmp.DiffPrettyText(diffs))
}

package main

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/mattn/go-isatty"

	"github.com/albapepper/scoracle-fusion/internal/pipeline"
	"github.com/albapepper/scoracle-fusion/internal/registry"
	"github.com/albapepper/scoracle-fusion/internal/source"
)

// renderTable draws rounded boxes on a terminal and plain ASCII otherwise,
// so redirected output stays greppable.
func renderTable(w io.Writer, title string, headers []string, rows [][]string) string {
	tw := table.NewWriter()
	if isTerminal(w) {
		tw.SetStyle(table.StyleRounded)
	} else {
		tw.SetStyle(table.StyleDefault)
	}
	if title != "" {
		tw.SetTitle(title)
	}

	header := make(table.Row, len(headers))
	for i, h := range headers {
		header[i] = h
	}
	tw.AppendHeader(header)
	for _, row := range rows {
		r := make(table.Row, len(headers))
		for i := range headers {
			if i < len(row) {
				r[i] = row[i]
			}
		}
		tw.AppendRow(r)
	}

	configs := make([]table.ColumnConfig, 0, len(headers))
	for i := range headers {
		align := text.AlignLeft
		if i > 0 {
			align = text.AlignRight
		}
		configs = append(configs, table.ColumnConfig{Number: i + 1, Align: align, AlignHeader: text.AlignLeft})
	}
	tw.SetColumnConfigs(configs)
	return tw.Render()
}

func isTerminal(w io.Writer) bool {
	file, ok := w.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

func renderRunResult(r *pipeline.RunResult, w io.Writer) string {
	title := "Run " + r.RunID.String()
	if r.DryRun {
		title += " (dry run)"
	}
	n := strconv.Itoa
	rows := [][]string{
		{"records loaded", n(r.RecordsLoaded)},
		{"manual pairs", n(r.ManualPairs)},
		{"proposals", n(r.Proposals)},
		{"accepted", n(r.Accepted)},
		{"demoted", n(r.Demoted)},
		{"merge conflicts", n(r.MergeConflicts)},
		{"unresolved", n(r.Unresolved)},
		{"malformed", n(r.Malformed)},
		{"review candidates", n(r.Candidates)},
		{"identities written", n(r.IdentitiesWritten)},
		{"links written", n(r.LinksWritten)},
		{"views published", n(r.ViewsPublished)},
		{"faults", n(len(r.Faults))},
		{"errors", n(len(r.Errors))},
		{"duration", r.Duration.Round(time.Millisecond).String()},
	}
	if len(r.ExportFiles) > 0 {
		rows = append(rows, []string{"exported", strings.Join(r.ExportFiles, "\n")})
	}
	return renderTable(w, title, []string{"metric", "value"}, rows)
}

func renderCoverage(c registry.Coverage, w io.Writer) string {
	pct := func(v int) string {
		if c.Players == 0 {
			return "-"
		}
		return fmt.Sprintf("%.1f%%", 100*float64(v)/float64(c.Players))
	}
	rows := [][]string{{"active players", strconv.Itoa(c.Players), pct(c.Players)}}
	for _, src := range source.All {
		v := c.PerSource[src]
		rows = append(rows, []string{string(src), strconv.Itoa(v), pct(v)})
	}
	for i, a := range source.All {
		for _, b := range source.All[i+1:] {
			v := c.Pairs[registry.PairKey(a, b)]
			rows = append(rows, []string{a.Short() + " + " + b.Short(), strconv.Itoa(v), pct(v)})
		}
	}
	rows = append(rows,
		[]string{"all three", strconv.Itoa(c.AllThree), pct(c.AllThree)},
		[]string{"merged (inactive)", strconv.Itoa(c.Merged), ""},
	)
	return renderTable(w, "Coverage", []string{"scope", "players", "share"}, rows)
}

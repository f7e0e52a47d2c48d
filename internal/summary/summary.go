// Package summary reports how many articles the ledger holds per topic,
// per local area and per year.
package summary

import (
	"cmp"
	"fmt"
	"io"
	"slices"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/JakeFAU/svt-crawler/internal/crawler"
)

// EmptyMessage is printed when the ledger has no entries.
const EmptyMessage = "No crawled data available!"

var displayNames = map[string]string{
	"blekinge":       "Blekinge",
	"dalarna":        "Dalarna",
	"gavleborg":      "Gävleborg",
	"granskning":     "uppdrag granskning",
	"halland":        "Halland",
	"helsingborg":    "Helsingborg",
	"jamtland":       "Jämtland",
	"jonkoping":      "Jönköping",
	"norrbotten":     "Norrbotten",
	"nyhetstecken":   "nyheter teckenspråk",
	"orebro":         "Örebro",
	"ost":            "Öst",
	"skane":          "Skåne",
	"smaland":        "Småland",
	"sodertalje":     "Södertälje",
	"sormland":       "Sörmland",
	"stockholm":      "Stockholm",
	"uppsala":        "Uppsala",
	"vader":          "väder",
	"varmland":       "Värmland",
	"vast":           "Väst",
	"vasterbotten":   "Västerbotten",
	"vasternorrland": "Västernorrland",
	"vastmanland":    "Västmanland",
}

// DisplayName returns the Swedish display name of a storage topic.
func DisplayName(topic string) string {
	if name, ok := displayNames[topic]; ok {
		return name
	}
	return topic
}

// Count is one labelled row of a summary table.
type Count struct {
	Label string
	N     int
}

// Summary aggregates ledger records.
type Summary struct {
	National      []Count
	Local         []Count
	PerYear       []Count
	NationalTotal int
	LocalTotal    int
}

// Total is the number of articles across national and local news.
func (s Summary) Total() int {
	return s.NationalTotal + s.LocalTotal
}

// Empty reports whether there was nothing to count.
func (s Summary) Empty() bool {
	return s.Total() == 0
}

// Build counts the records of a ledger. Topic rows are ordered by count,
// largest first; years are ordered ascending.
func Build(ledger *crawler.Ledger) Summary {
	national := make(map[string]int)
	local := make(map[string]int)
	perYear := make(map[string]int)

	var s Summary
	for _, u := range ledger.URLs() {
		rec, _ := ledger.Get(u)
		if crawler.IsLocalArea(rec.Topic) {
			local[DisplayName(rec.Topic)]++
			s.LocalTotal++
		} else {
			national[DisplayName(rec.Topic)]++
			s.NationalTotal++
		}
		perYear[rec.Year]++
	}

	s.National = byCount(national)
	s.Local = byCount(local)
	s.PerYear = toCounts(perYear)
	slices.SortFunc(s.PerYear, func(a, b Count) int { return cmp.Compare(a.Label, b.Label) })
	return s
}

func toCounts(m map[string]int) []Count {
	out := make([]Count, 0, len(m))
	for label, n := range m {
		out = append(out, Count{Label: label, N: n})
	}
	return out
}

func byCount(m map[string]int) []Count {
	out := toCounts(m)
	slices.SortFunc(out, func(a, b Count) int {
		if c := cmp.Compare(b.N, a.N); c != 0 {
			return c
		}
		return cmp.Compare(a.Label, b.Label)
	})
	return out
}

// Render prints the summary tables to w.
func Render(w io.Writer, s Summary) {
	if s.Empty() {
		_, _ = fmt.Fprintln(w, EmptyMessage)
		return
	}

	renderTable(w, "SVT nyheter", s.National, "SVT nyheter totalt", s.NationalTotal)
	renderTable(w, "SVT lokalnyheter", s.Local, "Lokalnyheter totalt", s.LocalTotal)
	renderTable(w, "SVT artiklar per år", s.PerYear, "", 0)
	_, _ = fmt.Fprintf(w, "Alla nyhetsartiklar\t%d\n", s.Total())
}

func renderTable(w io.Writer, title string, rows []Count, footer string, total int) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.SetTitle(title)
	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 2, Align: text.AlignRight, AlignFooter: text.AlignRight},
	})
	for _, row := range rows {
		t.AppendRow(table.Row{row.Label, row.N})
	}
	if footer != "" {
		t.AppendFooter(table.Row{footer, total})
	}
	t.Render()
	_, _ = fmt.Fprintln(w)
}

// Package report renders the daily summary of the order journal.
package report

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/rxtech-lab/argo-trader/internal/journal"
	"github.com/rxtech-lab/argo-trader/internal/types"
)

const (
	problemLimit = 10
	recentLimit  = 15
)

var (
	titleStyle   = lipgloss.NewStyle().Bold(true)
	sectionStyle = lipgloss.NewStyle().Bold(true).Underline(true)
	faintStyle   = lipgloss.NewStyle().Faint(true)
)

// Summary is everything the daily report shows.
type Summary struct {
	Date     string
	Files    []string
	Counts   []journal.Count
	BySide   []journal.Count
	ByTicker []journal.Count
	Turnover float64
	// Problems are the last rejects and cancels.
	Problems []journal.Row
	Recent   []journal.Row
}

// Build queries r for the summary of date.
func Build(r *journal.Reader, date string) (Summary, error) {
	s := Summary{Date: date, Files: r.Files()}

	var err error

	if s.Counts, err = r.EventCounts(); err != nil {
		return Summary{}, err
	}

	if s.BySide, err = r.FillsBySide(); err != nil {
		return Summary{}, err
	}

	if s.ByTicker, err = r.FillsByTicker(); err != nil {
		return Summary{}, err
	}

	if s.Turnover, err = r.Turnover(); err != nil {
		return Summary{}, err
	}

	if s.Problems, err = r.LastEvents(problemLimit, types.EventReject, types.EventCancel); err != nil {
		return Summary{}, err
	}

	if s.Recent, err = r.LastEvents(recentLimit); err != nil {
		return Summary{}, err
	}

	return s, nil
}

// Generate writes the report of date for the journals under dir.
func Generate(w io.Writer, dir, date string) error {
	r, err := journal.OpenDay(dir, date)
	if err != nil {
		return err
	}
	defer r.Close()

	s, err := Build(r, date)
	if err != nil {
		return err
	}

	_, err = io.WriteString(w, Render(s))

	return err
}

// Render formats s for a terminal.
func Render(s Summary) string {
	var b strings.Builder

	b.WriteString(titleStyle.Render(fmt.Sprintf("Daily report for %s (UTC)", s.Date)))
	b.WriteString("\n")
	b.WriteString(faintStyle.Render(fmt.Sprintf("%d journal file(s)", len(s.Files))))
	b.WriteString("\n\n")

	if len(s.Counts) == 0 {
		fmt.Fprintf(&b, "No events for %s\n", s.Date)

		return b.String()
	}

	writeCounts(&b, "Events", s.Counts)

	if len(s.BySide) == 0 {
		b.WriteString("No fills today.\n\n")
	} else {
		writeCounts(&b, "Fills by side", s.BySide)
		writeCounts(&b, "Fills by ticker", s.ByTicker)
		fmt.Fprintf(&b, "Turnover (approx): %s\n\n", formatAmount(s.Turnover))
	}

	if len(s.Problems) > 0 {
		b.WriteString(sectionStyle.Render(fmt.Sprintf("Reject/Cancel (last %d)", problemLimit)))
		b.WriteString("\n")
		b.WriteString(problemTable(s.Problems))
		b.WriteString("\n\n")
	}

	b.WriteString(sectionStyle.Render(fmt.Sprintf("Last %d events", recentLimit)))
	b.WriteString("\n")
	b.WriteString(recentTable(s.Recent))
	b.WriteString("\n")

	return b.String()
}

func writeCounts(b *strings.Builder, title string, counts []journal.Count) {
	b.WriteString(sectionStyle.Render(title))
	b.WriteString("\n")

	for _, c := range counts {
		label := c.Label
		if label == "" {
			label = "-"
		}

		fmt.Fprintf(b, "  %-14s %d\n", label, c.N)
	}

	b.WriteString("\n")
}

func problemTable(rows []journal.Row) string {
	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("TIME", "EVENT", "TICKER", "SIDE", "STATUS", "REASON")

	for _, r := range rows {
		t.Row(r.Timestamp.UTC().Format("15:04:05"), string(r.Event), r.DisplayName(), dash(r.Side), dash(r.Status), dash(r.Reason))
	}

	return t.Render()
}

func recentTable(rows []journal.Row) string {
	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("TIME", "EVENT", "TICKER", "SIDE", "LOTS", "PRICE", "REASON")

	for _, r := range rows {
		lots := "-"
		if r.Lots.IsSome() {
			lots = strconv.FormatInt(r.Lots.Unwrap(), 10)
		}

		price := "-"
		if r.Price.IsSome() {
			price = strconv.FormatFloat(r.Price.Unwrap(), 'f', 4, 64)
		}

		t.Row(r.Timestamp.UTC().Format("15:04:05"), string(r.Event), r.DisplayName(), dash(r.Side), lots, price, dash(r.Reason))
	}

	return t.Render()
}

func dash(s string) string {
	if s == "" {
		return "-"
	}

	return s
}

// formatAmount renders v with two decimals and thousands separators.
func formatAmount(v float64) string {
	s := strconv.FormatFloat(v, 'f', 2, 64)

	sign := ""
	if strings.HasPrefix(s, "-") {
		sign, s = "-", s[1:]
	}

	whole, frac, _ := strings.Cut(s, ".")

	var out []byte

	for i := range len(whole) {
		if i > 0 && (len(whole)-i)%3 == 0 {
			out = append(out, ',')
		}

		out = append(out, whole[i])
	}

	return sign + string(out) + "." + frac
}

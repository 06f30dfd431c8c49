// Package display provides terminal output formatting for transitboard.
package display

import (
	"fmt"
	"strings"
	"time"

	"github.com/dmvtransit/transitboard/internal/aggregator"
	"github.com/dmvtransit/transitboard/internal/mobilitydata"
)

const separator = " • "

// TerminalFormatter formats agency status cards for terminal display.
type TerminalFormatter struct{}

// NewTerminalFormatter creates a new terminal formatter.
func NewTerminalFormatter() *TerminalFormatter {
	return &TerminalFormatter{}
}

// FormatAgency formats a single agency card: status badge, feed lines with
// validation counts, and download links.
func (f *TerminalFormatter) FormatAgency(agency aggregator.Agency) string {
	var lines []string

	header := fmt.Sprintf("[%s] %s", strings.ToUpper(string(agency.OverallStatus)), agency.Name)
	if agency.Website != "" {
		header += separator + agency.Website
	}
	lines = append(lines, header)

	for _, feed := range agency.Feeds {
		lines = append(lines, f.formatFeed(feed)...)
	}

	return strings.Join(lines, "\n") + "\n"
}

func (f *TerminalFormatter) formatFeed(feed aggregator.ProcessedFeed) []string {
	var lines []string

	meta := fmt.Sprintf("  %s (%s)%s%s", feed.Name, feed.ID, separator, feed.Status)
	if len(feed.RealtimeTypes) > 0 {
		types := make([]string, 0, len(feed.RealtimeTypes))
		for _, et := range feed.RealtimeTypes {
			types = append(types, string(et))
		}
		meta += separator + strings.Join(types, ",")
	}
	if feed.LastUpdated != "" {
		meta += separator + "updated " + f.FormatTimestamp(feed.LastUpdated)
	}
	lines = append(lines, meta)

	if validation := f.formatValidation(feed.Validation); validation != "" {
		lines = append(lines, "    "+validation)
	}
	if feed.DownloadURLs.MobilityData != "" {
		lines = append(lines, "    hosted: "+feed.DownloadURLs.MobilityData)
	}
	if feed.DownloadURLs.Direct != "" {
		lines = append(lines, "    direct: "+feed.DownloadURLs.Direct)
	}

	return lines
}

// formatValidation formats validation counts into a single line.
func (f *TerminalFormatter) formatValidation(report *mobilitydata.ValidationReport) string {
	if report == nil {
		return ""
	}

	parts := []string{
		fmt.Sprintf("%d errors", report.TotalError),
		fmt.Sprintf("%d warnings", report.TotalWarning),
		fmt.Sprintf("%d infos", report.TotalInfo),
	}
	return "validation: " + strings.Join(parts, separator)
}

// FormatAgencies formats the full dashboard for display.
func (f *TerminalFormatter) FormatAgencies(agencies []aggregator.Agency) string {
	if len(agencies) == 0 {
		return "No agencies to display.\n"
	}

	var formatted []string
	for _, agency := range agencies {
		formatted = append(formatted, f.FormatAgency(agency))
	}

	return strings.Join(formatted, "\n")
}

// FormatTimestamp formats an RFC 3339 timestamp as relative time. Values that
// do not parse are returned unchanged.
func (f *TerminalFormatter) FormatTimestamp(s string) string {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return s
	}

	diff := time.Since(t)
	switch {
	case diff < time.Minute:
		return "just now"
	case diff < time.Hour:
		return pluralize(int(diff.Minutes()), "minute")
	case diff < 24*time.Hour:
		return pluralize(int(diff.Hours()), "hour")
	case diff < 7*24*time.Hour:
		return pluralize(int(diff.Hours()/24), "day")
	default:
		return t.Format("Jan 2, 2006")
	}
}

// pluralize returns "N unit ago" or "N units ago" based on count.
func pluralize(n int, unit string) string {
	if n == 1 {
		return fmt.Sprintf("1 %s ago", unit)
	}
	return fmt.Sprintf("%d %ss ago", n, unit)
}

// TruncateText truncates text to maxLen, adding "..." if truncated.
func (f *TerminalFormatter) TruncateText(text string, maxLen int) string {
	if len(text) <= maxLen {
		return text
	}
	if maxLen <= 3 {
		return "..."
	}
	return text[:maxLen-3] + "..."
}

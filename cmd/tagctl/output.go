package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/fatih/color"

	"github.com/tagdesk/tagdesk/internal/service"
)

var (
	successText = color.New(color.FgGreen, color.Bold).SprintFunc()
	warnText    = color.New(color.FgYellow).SprintFunc()
	errorText   = color.New(color.FgRed, color.Bold).SprintFunc()
)

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printIssues(w io.Writer, issues []service.RowIssue) {
	for _, is := range issues {
		subject := is.SerialNumber
		if subject == "" {
			subject = is.BCID
		}
		if subject != "" {
			subject = " " + subject
		}
		fmt.Fprintf(w, "  row %d%s: %s\n", is.Row, subject, warnText(is.Reason))
	}
}

func printAllocationReport(w io.Writer, r *service.BulkAllocationReport) {
	if !r.Committed {
		fmt.Fprintf(w, "%s %d row(s), %d problem(s)\n", errorText("rejected"), r.Rows, len(r.Issues))
		printIssues(w, r.Issues)
		return
	}
	fmt.Fprintf(w, "%s %d of %d row(s)", successText("allocated"), r.Succeeded, r.Rows)
	if r.Failed > 0 {
		fmt.Fprintf(w, ", %s", errorText(fmt.Sprintf("%d failed", r.Failed)))
	}
	fmt.Fprintln(w)
	printIssues(w, r.Issues)
}

func printDeletionPreview(w io.Writer, p *service.DeletionPreview) {
	fmt.Fprintf(w, "%s %d found, %d not found\n", warnText("dry run:"), len(p.Found), len(p.NotFound))
	for _, item := range p.Found {
		fmt.Fprintf(w, "  delete %s (%s, %s)\n", item.SerialNumber, item.BCID, item.Status)
	}
	for _, item := range p.NotFound {
		fmt.Fprintf(w, "  missing %s (row %d)\n", item.SerialNumber, item.Row)
	}
	printIssues(w, p.Issues)
}

func printDeletionReport(w io.Writer, r *service.BulkDeletionReport) {
	fmt.Fprintf(w, "%s %d of %d serial number(s)", successText("deleted"), r.Deleted, r.Requested)
	if r.NotFound > 0 {
		fmt.Fprintf(w, ", %s", warnText(fmt.Sprintf("%d not found", r.NotFound)))
	}
	if r.Failed > 0 {
		fmt.Fprintf(w, ", %s", errorText(fmt.Sprintf("%d failed", r.Failed)))
	}
	fmt.Fprintln(w)
	printIssues(w, r.Failures)
}

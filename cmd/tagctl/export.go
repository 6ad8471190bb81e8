package main

import (
	"bytes"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/tagdesk/tagdesk/internal/model"
	"github.com/tagdesk/tagdesk/internal/service"
	"github.com/tagdesk/tagdesk/internal/spreadsheet"
)

func newExportCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write records to a spreadsheet",
	}

	var (
		format string
		output string
		status string
		query  string
	)
	allocations := &cobra.Command{
		Use:   "allocations",
		Short: "Export allocations; the file can be fed back to import deletions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			f, err := spreadsheet.ParseFormat(format)
			if err != nil {
				return err
			}
			filter := service.AllocationFilter{Query: query, Status: model.AllocationStatus(status)}
			if status != "" && !filter.Status.IsValid() {
				return fmt.Errorf("invalid status %q", status)
			}
			if output == "" {
				output = exportFilename(f, time.Now())
			}

			repo, err := a.openRepo(cmd.Context())
			if err != nil {
				return err
			}
			defer repo.Close()

			svc, err := a.services(cmd.Context(), repo)
			if err != nil {
				return err
			}
			defer svc.close()

			var buf bytes.Buffer
			if err := svc.allocations.Export(cmd.Context(), &buf, f, filter); err != nil {
				return err
			}
			if output == "-" {
				_, err := a.out.Write(buf.Bytes())
				return err
			}
			if err := os.WriteFile(output, buf.Bytes(), 0o644); err != nil {
				return fmt.Errorf("write %s: %w", output, err)
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "%s %s\n", successText("wrote"), output)
			return nil
		},
	}
	allocations.Flags().StringVar(&format, "format", string(spreadsheet.FormatCSV), "csv or xlsx")
	allocations.Flags().StringVarP(&output, "output", "o", "", `output file, "-" for stdout (default allocations-YYYYMMDD.<format>)`)
	allocations.Flags().StringVar(&status, "status", "", "only export allocations with this status")
	allocations.Flags().StringVar(&query, "query", "", "only export allocations matching this text")

	cmd.AddCommand(allocations)
	return cmd
}

func exportFilename(f spreadsheet.Format, now time.Time) string {
	return "allocations-" + now.Format("20060102") + f.Extension()
}

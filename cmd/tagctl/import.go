package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/tagdesk/tagdesk/internal/service"
	"github.com/tagdesk/tagdesk/internal/spreadsheet"
)

func newImportCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Apply an allocation or deletion spreadsheet",
	}
	cmd.AddCommand(newImportAllocationsCmd(a), newImportDeletionsCmd(a))
	return cmd
}

func newImportAllocationsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "allocations <file.csv|file.xlsx>",
		Short: "Allocate every serial number in a sheet to the user with its BC ID",
		Long: `The sheet needs "Serial Number" and "BC ID" columns. If any row is
invalid or names an unknown BC ID, nothing is written.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var rows []spreadsheet.AllocationRow
			if err := readSheet(args[0], func(f *os.File, format spreadsheet.Format) (err error) {
				rows, err = spreadsheet.ParseAllocations(f, format)
				return err
			}); err != nil {
				return err
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

			report, err := svc.allocations.BulkAllocate(cmd.Context(), service.BulkAllocateInput{
				Rows:   rows,
				Source: filepath.Base(args[0]),
				Actor:  cliActor,
			})
			if report != nil {
				if a.jsonOut {
					if werr := writeJSON(a.out, report); werr != nil {
						return werr
					}
				} else {
					printAllocationReport(a.out, report)
				}
			}
			if errors.Is(err, service.ErrBulkRejected) {
				return errors.New("sheet rejected, nothing was allocated")
			}
			return err
		},
	}
}

func newImportDeletionsCmd(a *app) *cobra.Command {
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "deletions <file.csv|file.xlsx>",
		Short: "Delete every allocation whose serial number is in a sheet",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var rows []spreadsheet.DeletionRow
			if err := readSheet(args[0], func(f *os.File, format spreadsheet.Format) (err error) {
				rows, err = spreadsheet.ParseDeletions(f, format)
				return err
			}); err != nil {
				return err
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
			allocations := svc.allocations

			if dryRun {
				preview, err := allocations.PreviewBulkDelete(cmd.Context(), rows)
				if err != nil {
					return err
				}
				if a.jsonOut {
					return writeJSON(a.out, preview)
				}
				printDeletionPreview(a.out, preview)
				return nil
			}

			report, err := allocations.BulkDelete(cmd.Context(), service.BulkDeleteInput{
				Rows:   rows,
				Source: filepath.Base(args[0]),
				Actor:  cliActor,
			})
			if err != nil {
				return err
			}
			if a.jsonOut {
				return writeJSON(a.out, report)
			}
			printDeletionReport(a.out, report)
			return nil
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "only report which serial numbers exist")
	return cmd
}

// readSheet opens path and hands it to parse with the format implied by its
// extension.
func readSheet(path string, parse func(*os.File, spreadsheet.Format) error) error {
	format, err := spreadsheet.FormatFromFilename(path)
	if err != nil {
		return err
	}
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	if err := parse(f, format); err != nil {
		return fmt.Errorf("read %s: %w", filepath.Base(path), err)
	}
	return nil
}

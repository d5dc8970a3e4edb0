// Command csvtab inspects CSV files through the csvtable scanner.
package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/shapestone/shape-csvtable/pkg/csvtable"
)

type tableFlags struct {
	delimiter string
	header    bool
	detect    bool
	verbose   bool
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	flags := &tableFlags{}
	cmd := &cobra.Command{
		Use:   "csvtab",
		Short: "Inspect CSV files as rewindable tables",
		Long: `csvtab opens a CSV file as a table of text values and scans it
row by row, handling quoted fields with embedded delimiters, embedded
line breaks, and doubled-quote escaping.`,
		SilenceUsage: true,
	}

	pf := cmd.PersistentFlags()
	pf.StringVarP(&flags.delimiter, "delimiter", "d", ",", "field delimiter (single byte)")
	pf.BoolVar(&flags.header, "header", false, "treat the first row as column names")
	pf.BoolVar(&flags.detect, "detect-delimiter", false, "sniff the delimiter from the start of the file")
	pf.BoolVarP(&flags.verbose, "verbose", "v", false, "log scan diagnostics to stderr")

	cmd.AddCommand(newScanCommand(flags))
	cmd.AddCommand(newColumnsCommand(flags))
	return cmd
}

func newScanCommand(flags *tableFlags) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "scan <file>",
		Short: "Print the table's rows, one per line, prefixed with the row id",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tbl, err := flags.open(args[0])
			if err != nil {
				return err
			}
			defer tbl.Close()

			cur, err := tbl.NewCursor()
			if err != nil {
				return err
			}
			defer cur.Close()

			n := 0
			for cur.Next() {
				if limit > 0 && n >= limit {
					break
				}
				row := make([]string, cur.FieldCount())
				for i := range row {
					v, _, err := cur.Field(i)
					if err != nil {
						return err
					}
					row[i] = v
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%d\t%s\n", cur.RowID(), strings.Join(row, "\t"))
				n++
			}
			return cur.Err()
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "stop after this many rows (0 = all)")
	return cmd
}

func newColumnsCommand(flags *tableFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "columns <file>",
		Short: "Print the column names derived from the first row",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tbl, err := flags.open(args[0])
			if err != nil {
				return err
			}
			defer tbl.Close()

			for i, name := range tbl.Columns() {
				fmt.Fprintf(cmd.OutOrStdout(), "%d\t%s\n", i+1, name)
			}
			return nil
		},
	}
}

// open builds table options from the shared flags and opens path.
func (f *tableFlags) open(path string) (*csvtable.Table, error) {
	if len(f.delimiter) != 1 {
		return nil, fmt.Errorf("delimiter must be a single byte, got %q", f.delimiter)
	}

	opts := csvtable.DefaultOptions()
	opts.Delimiter = f.delimiter[0]
	opts.UseHeaderRow = f.header
	opts.DetectDelimiter = f.detect
	if f.verbose {
		logger, err := zap.NewDevelopment()
		if err != nil {
			return nil, err
		}
		opts.Logger = logger
	}
	return csvtable.OpenWithOptions(path, opts)
}

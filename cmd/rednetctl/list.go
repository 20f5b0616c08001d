package main

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/rednet-io/rednet-go/internal/api"
)

func listCmd(flags *globalFlags, name, path string) *cobra.Command {
	var asJSON bool

	list := &cobra.Command{
		Use:   "list",
		Short: fmt.Sprintf("List %s", name),
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, _, err := newAPI(flags)
			if err != nil {
				return err
			}
			defer a.Close()

			var records []api.Record
			if err := api.NewEndpoint(a.Client(), path).FindAll(cmd.Context(), &records); err != nil {
				return err
			}

			if asJSON {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(records)
			}
			printRecords(records)
			return nil
		},
	}
	list.Flags().BoolVar(&asJSON, "json", false, "print raw JSON")

	parent := &cobra.Command{
		Use:   name,
		Short: fmt.Sprintf("Manage %s", name),
	}
	parent.AddCommand(list)
	return parent
}

// printRecords prints one row per record: id first, then the remaining
// scalar fields in name order.
func printRecords(records []api.Record) {
	if len(records) == 0 {
		color.Yellow("No records")
		return
	}

	fieldSet := map[string]bool{}
	for _, r := range records {
		for k, v := range r {
			if k == "id" || k == "_id" {
				continue
			}
			switch v.(type) {
			case map[string]any, []any:
				continue
			}
			fieldSet[k] = true
		}
	}
	fields := make([]string, 0, len(fieldSet))
	for k := range fieldSet {
		fields = append(fields, k)
	}
	sort.Strings(fields)

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, strings.ToUpper(strings.Join(append([]string{"id"}, fields...), "\t")))
	for _, r := range records {
		row := []string{r.ID()}
		for _, f := range fields {
			row = append(row, r.String(f))
		}
		fmt.Fprintln(w, strings.Join(row, "\t"))
	}
	w.Flush()
}

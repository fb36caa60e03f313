package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/cwbudde/seqdesign/internal/registry"
	"github.com/spf13/cobra"
)

var componentsJSON bool

var componentsCmd = &cobra.Command{
	Use:   "components",
	Short: "List the component classes available to run files",
	RunE:  runComponents,
}

func init() {
	componentsCmd.Flags().BoolVar(&componentsJSON, "json", false, "Print the listing as JSON")
	rootCmd.AddCommand(componentsCmd)
}

func runComponents(cmd *cobra.Command, args []string) error {
	listing := registry.Default().Describe()

	if componentsJSON {
		data, err := json.MarshalIndent(listing, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to encode listing: %w", err)
		}
		fmt.Println(string(data))
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "SECTION\tCLASSES")
	fmt.Fprintf(w, "oracles\t%s\n", strings.Join(listing.Oracles, ", "))
	fmt.Fprintf(w, "energy_terms\t%s\n", strings.Join(listing.EnergyTerms, ", "))
	fmt.Fprintf(w, "mutation_protocols\t%s\n", strings.Join(listing.Mutators, ", "))
	fmt.Fprintf(w, "minimizer\t%s\n", strings.Join(listing.Minimizers, ", "))
	return w.Flush()
}

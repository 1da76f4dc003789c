package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"pocket-curator/internal/version"
)

var catalogYAML bool

// productsCmd lists the product catalog.
var productsCmd = &cobra.Command{
	Use:   "products",
	Short: "List the merchandise products",
	RunE:  runProducts,
}

// versionCmd prints build information.
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintln(cmd.OutOrStdout(), "mockup "+version.String())
	},
}

func init() {
	productsCmd.Flags().BoolVar(&catalogYAML, "yaml", false, "Print the catalog as YAML")
}

func runProducts(cmd *cobra.Command, args []string) error {
	state, err := newState()
	if err != nil {
		return err
	}
	defer state.Close()

	c := state.Catalog()
	if catalogYAML {
		data, err := c.Marshal()
		if err != nil {
			return err
		}
		_, err = cmd.OutOrStdout().Write(data)
		return err
	}

	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "KEY\tLABEL\tASPECT\tSOURCE")
	for _, p := range c.Products {
		fmt.Fprintf(tw, "%s\t%s\t%.3f\t%s\n", p.Key, p.Label, p.Aspect, p.Src)
	}
	return tw.Flush()
}

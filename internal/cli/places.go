package cli

import (
	"fmt"

	"github.com/bluemountains/harvest/pkg/gazetteer"
	"github.com/spf13/cobra"
)

var placesPrefix bool

var placesCmd = &cobra.Command{
	Use:   "places <name>",
	Short: "Look up a place name in the embedded gazetteer",
	Long: "places queries the read-only gazetteer database for candidate " +
		"locations matching a historical place name. Zero candidates is a " +
		"normal outcome for names that never entered the official record.",
	Args: cobra.ExactArgs(1),
	RunE: placesAction,
}

func init() {
	placesCmd.Flags().BoolVar(&placesPrefix, "prefix", false, "match by name prefix instead of exactly")
	rootCmd.AddCommand(placesCmd)
}

func placesAction(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	name := args[0]

	db, err := gazetteer.Open(cfg.Gazetteer.Path)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	var places []gazetteer.Place
	if placesPrefix {
		places, err = db.Search(ctx, name, 20)
	} else {
		places, err = db.Lookup(ctx, name)
	}
	if err != nil {
		return err
	}

	if len(places) == 0 {
		fmt.Printf("No gazetteer candidates for %q\n", name)
		return nil
	}

	fmt.Printf("%d candidate(s) for %q:\n", len(places), name)
	for _, p := range places {
		fmt.Printf("  %-30s %-15s %-12s %9.5f %10.5f  %s (%s)\n",
			p.Name, p.FeatureType, p.Category, p.Latitude, p.Longitude, p.Authority, p.SupplyDate)
	}

	return nil
}

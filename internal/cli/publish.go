package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/bluemountains/harvest/pkg/omeka"
	"github.com/spf13/cobra"
)

var publishFile string

var publishCmd = &cobra.Command{
	Use:   "publish",
	Short: "Publish curated items to the collection site",
	Long: "publish reads a JSON file of metadata-element mappings (one per " +
		"item) and creates each item on the configured Omeka site. Element " +
		"schemas are owned by the site and passed through unmodified.",
	RunE: publishAction,
}

func init() {
	publishCmd.Flags().StringVar(&publishFile, "file", "", "JSON file holding a list of element mappings")
	_ = publishCmd.MarkFlagRequired("file")
	rootCmd.AddCommand(publishCmd)
}

func publishAction(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	if cfg.Omeka.BaseURL == "" {
		return fmt.Errorf("omeka.base_url is not configured")
	}
	apiKey := cfg.OmekaAPIKey()
	if apiKey == "" {
		return fmt.Errorf("publishing requires an API key in $%s", cfg.Omeka.APIKeyEnv)
	}

	data, err := os.ReadFile(publishFile)
	if err != nil {
		return fmt.Errorf("read items file: %w", err)
	}

	var items []omeka.Elements
	if err := json.Unmarshal(data, &items); err != nil {
		return fmt.Errorf("parse items file: %w", err)
	}
	if len(items) == 0 {
		return fmt.Errorf("items file %s holds no items", publishFile)
	}

	site, err := omeka.New(omeka.Config{
		BaseURL: cfg.Omeka.BaseURL,
		SiteID:  cfg.Omeka.SiteID,
		APIKey:  apiKey,
		Limiter: limiterFor(apiKey, "omeka"),
	})
	if err != nil {
		return err
	}

	for i, elements := range items {
		created, err := site.AddItem(ctx, elements)
		if err != nil {
			return fmt.Errorf("publish item %d/%d: %w", i+1, len(items), err)
		}

		id := "?"
		if v, ok := created["id"].(float64); ok {
			id = fmt.Sprintf("%.0f", v)
		}
		fmt.Printf("Published item %d/%d (site id %s)\n", i+1, len(items), id)
	}

	return nil
}

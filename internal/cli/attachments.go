package cli

import (
	"fmt"

	"github.com/bluemountains/harvest/pkg/pagination"
	"github.com/bluemountains/harvest/pkg/zotero"
	"github.com/spf13/cobra"
)

var attachmentsCmd = &cobra.Command{
	Use:   "attachments <item-key>...",
	Short: "Inspect the child attachments of library items",
	Long: "attachments lists the children (attachments, notes) of each given " +
		"item and categorises the attachment pattern so curators can " +
		"prioritise multi-attachment records before publishing.",
	Args: cobra.MinimumNArgs(1),
	RunE: attachmentsAction,
}

func init() {
	rootCmd.AddCommand(attachmentsCmd)
}

func attachmentsAction(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	if cfg.Zotero.GroupID == "" {
		return fmt.Errorf("zotero.group_id is not configured")
	}

	apiKey := cfg.ZoteroAPIKey()
	respCache, closeCache, err := openCache(ctx)
	if err != nil {
		return err
	}
	defer closeCache()

	zot, err := zotero.New(zotero.Config{
		BaseURL: cfg.Zotero.BaseURL,
		GroupID: cfg.Zotero.GroupID,
		APIKey:  apiKey,
		Limiter: limiterFor(apiKey, "zotero"),
		Cache:   respCache,
	})
	if err != nil {
		return err
	}

	for _, key := range args {
		result, err := zot.Children(ctx, key, pagination.Config{})
		if err != nil {
			return surfaceError(err)
		}

		fmt.Printf("%s: %d children\n", key, len(result.Items))
		for _, child := range result.Items {
			data, _ := child["data"].(map[string]any)
			childKey, _ := child["key"].(string)
			itemType, _ := data["itemType"].(string)
			title, _ := data["title"].(string)
			contentType, _ := data["contentType"].(string)

			line := fmt.Sprintf("  %s  %-12s", childKey, itemType)
			if contentType != "" {
				line += "  " + contentType
			}
			if title != "" {
				line += "  " + title
			}
			fmt.Println(line)
		}

		pattern := zotero.CategorizeAttachments(result.Items)
		fmt.Printf("  Category: %s\n", pattern.Category)
		fmt.Printf("  %s\n", pattern.Reasoning)
		fmt.Printf("  %s\n", pattern.Action)
	}

	return nil
}

package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"media-meta/internal/db"
)

// listCmd represents the list command
var listCmd = &cobra.Command{
	Use:   "list [query]",
	Short: "List or search attachments.",
	Long: `Lists attachments in the media library. With a query, matches it against
the file name, alt text, title and description.`,
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		a, err := openApp(ctx)
		if err != nil {
			fmt.Printf("Error initializing: %v\n", err)
			return
		}
		defer a.Close()

		var results []db.Attachment
		if len(args) > 0 {
			query := strings.Join(args, " ")
			fmt.Printf("Searching for: \"%s\"\n\n", query)
			results, err = a.store.SearchAttachments(ctx, query, limit)
		} else {
			results, err = a.store.ListAttachments(ctx, limit)
		}
		if err != nil {
			fmt.Printf("Error listing attachments: %v\n", err)
			return
		}

		if len(results) == 0 {
			fmt.Println("No results found.")
			return
		}

		fmt.Printf("Found %d attachments:\n", len(results))
		for _, att := range results {
			fmt.Printf("----------------------------------------\n")
			fmt.Printf("[%d] %s (%s)\n", att.ID, att.Filename, att.MimeType)
			if att.Title != "" {
				fmt.Printf("Title: %s\n", att.Title)
			}
			if att.AltText != "" {
				fmt.Printf("Alt text: %s\n", att.AltText)
			}
			if att.Description != "" {
				fmt.Printf("Description: %s\n", att.Description)
			}
		}
		fmt.Printf("----------------------------------------\n")
	},
}

func init() {
	rootCmd.AddCommand(listCmd)
}

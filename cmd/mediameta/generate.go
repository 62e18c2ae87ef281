package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"media-meta/internal/ai"
	"media-meta/internal/db"
)

var (
	genKeywords    string
	genAlt         bool
	genTitle       bool
	genDescription bool
	genMissing     bool
)

// generateCmd represents the generate command
var generateCmd = &cobra.Command{
	Use:   "generate [attachment-id]",
	Short: "Generate alt text, title and description for attachments.",
	Long: `Sends an attachment's image to Gemini and saves the generated alt text,
title and description. With --missing, processes every attachment that has no
alt text yet (up to --limit, 5 by default).`,
	Args: func(cmd *cobra.Command, args []string) error {
		if genMissing {
			return cobra.NoArgs(cmd, args)
		}
		return cobra.ExactArgs(1)(cmd, args)
	},
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		a, err := openApp(ctx)
		if err != nil {
			fmt.Printf("Error initializing: %v\n", err)
			return
		}
		defer a.Close()

		gw, err := a.gateway()
		if err != nil {
			fmt.Printf("Error creating gateway: %v\n", err)
			return
		}

		if !genMissing {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil || id <= 0 {
				fmt.Println("Invalid Attachment ID.")
				return
			}
			if err := generateOne(ctx, a.store, gw, id); err != nil {
				fmt.Printf("Error: %v\n", err)
			}
			return
		}

		batchLimit := limit
		if batchLimit == 0 {
			batchLimit = 5 // Default to 5 if no limit is set
		}
		fmt.Printf("Attempting to generate metadata for up to %d attachments...\n", batchLimit)

		pending, err := a.store.ListMissingAltText(ctx, batchLimit)
		if err != nil {
			fmt.Printf("Error getting attachments without alt text: %v\n", err)
			return
		}
		if len(pending) == 0 {
			fmt.Println("Every attachment already has alt text.")
			return
		}

		fmt.Printf("Found %d attachments without alt text.\n", len(pending))
		done := 0
		for i, att := range pending {
			fmt.Printf("[%d/%d] %s\n", i+1, len(pending), att.Filename)
			if err := generateOne(ctx, a.store, gw, att.ID); err != nil {
				fmt.Printf("Error: %v\n", err)
				continue
			}
			done++
		}
		fmt.Printf("Generated metadata for %d of %d attachments.\n", done, len(pending))
	},
}

func generateOne(ctx context.Context, store *db.Store, gw *ai.Gateway, id int64) error {
	res, err := gw.Generate(ctx, ai.GenerationRequest{
		AttachmentID:         id,
		Keywords:             genKeywords,
		IncludeInAlt:         genAlt,
		IncludeInTitle:       genTitle,
		IncludeInDescription: genDescription,
	})
	if err != nil {
		return err
	}
	if err := store.ApplyUpdate(ctx, id, res.Update()); err != nil {
		return fmt.Errorf("could not save generated metadata: %w", err)
	}

	show := func(label string, v *string) {
		if v != nil && *v != "" {
			fmt.Printf("  %s: %s\n", label, *v)
		}
	}
	show("Alt text", res.AltText)
	show("Title", res.Title)
	show("Description", res.Description)
	return nil
}

func init() {
	rootCmd.AddCommand(generateCmd)
	generateCmd.Flags().StringVarP(&genKeywords, "keywords", "k", "", "Keywords to guide the model, comma separated")
	generateCmd.Flags().BoolVar(&genAlt, "alt", true, "Work the keywords into the alt text")
	generateCmd.Flags().BoolVar(&genTitle, "title", false, "Work the keywords into the title")
	generateCmd.Flags().BoolVar(&genDescription, "description", true, "Work the keywords into the description")
	generateCmd.Flags().BoolVar(&genMissing, "missing", false, "Process attachments that have no alt text yet")
}

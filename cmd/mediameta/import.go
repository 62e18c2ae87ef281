package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/spf13/cobra"

	"media-meta/internal/augmenter"
	"media-meta/internal/db"
)

// importCmd represents the import command
var importCmd = &cobra.Command{
	Use:   "import <dir>",
	Short: "Import images from a directory into the media library.",
	Long: `Walks a directory and records every image it finds. Re-importing a file
refreshes its name and type but keeps any alt text, title and description.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		root, err := filepath.Abs(args[0])
		if err != nil {
			fmt.Printf("Error resolving %s: %v\n", args[0], err)
			return
		}

		ctx := context.Background()
		a, err := openApp(ctx)
		if err != nil {
			fmt.Printf("Error initializing: %v\n", err)
			return
		}
		defer a.Close()

		fmt.Printf("Importing images from %s...\n", root)
		imported, skipped := 0, 0
		errStop := errors.New("limit reached")

		err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				fmt.Printf("Could not read %s: %v. Skipping.\n", path, err)
				return nil
			}
			if d.IsDir() || !augmenter.AllowedFile(d.Name()) {
				return nil
			}

			mt, err := mimetype.DetectFile(path)
			if err != nil || !strings.HasPrefix(mt.String(), "image/") {
				skipped++
				return nil
			}

			att := db.Attachment{
				Filename: d.Name(),
				FilePath: path,
				MimeType: mt.String(),
				Title:    strings.TrimSuffix(d.Name(), filepath.Ext(d.Name())),
			}
			id, err := a.store.UpsertAttachment(ctx, att)
			if err != nil {
				fmt.Printf("Error saving %s: %v\n", path, err)
				return nil
			}
			imported++
			fmt.Printf("[%d] %s (%s)\n", id, att.Filename, att.MimeType)

			if limit > 0 && imported >= limit {
				return errStop
			}
			return nil
		})
		if err != nil && !errors.Is(err, errStop) {
			fmt.Printf("Error walking %s: %v\n", root, err)
			return
		}

		fmt.Printf("Imported %d images", imported)
		if skipped > 0 {
			fmt.Printf(", skipped %d files that are not images", skipped)
		}
		fmt.Println(".")
	},
}

func init() {
	rootCmd.AddCommand(importCmd)
}

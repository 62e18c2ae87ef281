package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"media-meta/internal/config"
	"media-meta/internal/sanitize"
)

var testKey string

// testConnectionCmd represents the test-connection command
var testConnectionCmd = &cobra.Command{
	Use:   "test-connection",
	Short: "Check that a Gemini API key works.",
	Long:  `Sends a short text-only prompt to Gemini with the given key, or the stored one.`,
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		a, err := openApp(ctx)
		if err != nil {
			fmt.Printf("Error initializing: %v\n", err)
			return
		}
		defer a.Close()

		key := config.GetAPIKey()
		if cmd.Flags().Changed("key") {
			key = sanitize.TextField(testKey)
		}

		gw, err := a.gateway()
		if err != nil {
			fmt.Printf("Error creating gateway: %v\n", err)
			return
		}
		if err := gw.TestConnection(ctx, key); err != nil {
			fmt.Printf("Error: %v\n", err)
			return
		}
		fmt.Println("Connection successful! The API key works.")
	},
}

func init() {
	rootCmd.AddCommand(testConnectionCmd)
	testConnectionCmd.Flags().StringVar(&testKey, "key", "", "API key to test instead of the stored one")
}

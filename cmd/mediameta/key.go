package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"media-meta/internal/config"
)

// keyCmd represents the base command for API key management.
var keyCmd = &cobra.Command{
	Use:   "key",
	Short: "Manage the Gemini API key.",
}

var keySetCmd = &cobra.Command{
	Use:   "set <api-key>",
	Short: "Save the Gemini API key to the config file.",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		key := strings.TrimSpace(args[0])
		if key == "" {
			fmt.Println("API Key is empty.")
			return
		}
		if err := config.SaveAPIKey(key); err != nil {
			fmt.Printf("Error saving API key: %v\n", err)
			return
		}
		fmt.Println("API key saved.")
	},
}

var keyShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the stored API key, masked.",
	Run: func(cmd *cobra.Command, args []string) {
		key := config.GetAPIKey()
		if key == "" {
			fmt.Println("No API key configured. Run 'mediameta key set <api-key>' first.")
			return
		}
		fmt.Println(maskKey(key))
	},
}

// maskKey keeps the last four characters.
func maskKey(key string) string {
	if len(key) <= 4 {
		return strings.Repeat("*", len(key))
	}
	return strings.Repeat("*", len(key)-4) + key[len(key)-4:]
}

func init() {
	rootCmd.AddCommand(keyCmd)
	keyCmd.AddCommand(keySetCmd)
	keyCmd.AddCommand(keyShowCmd)
}

package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"media-meta/internal/config"
)

// dbCmd represents the base command for database operations.
var dbCmd = &cobra.Command{
	Use:   "db",
	Short: "Manage the local database.",
}

// resetCmd represents the command to reset the database.
var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Delete and reset the local SQLite database file.",
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := config.Load()
		if err != nil {
			fmt.Printf("Error: %v\n", err)
			return
		}
		dbPath, err := sqliteFile(cfg)
		if err != nil {
			fmt.Printf("Error: %v\n", err)
			return
		}

		if _, err := os.Stat(dbPath); os.IsNotExist(err) {
			fmt.Println("Database file does not exist. Nothing to do.")
			return
		}

		fmt.Printf("Are you sure you want to delete the database file at %s? [y/N]: ", dbPath)
		var response string
		fmt.Scanln(&response)

		if response == "y" || response == "Y" {
			if err := os.Remove(dbPath); err != nil {
				fmt.Printf("Error deleting database file: %v\n", err)
				return
			}
			fmt.Println("Database file successfully deleted.")
		} else {
			fmt.Println("Reset cancelled.")
		}
	},
}

// sqliteFile resolves the file behind the configured SQLite DSN, the same one
// openApp opens. Other drivers and in-memory databases have no file to reset.
func sqliteFile(cfg *config.Config) (string, error) {
	if cfg.Database.Driver != "sqlite" {
		return "", fmt.Errorf("db reset only works with sqlite, the configured driver is %q", cfg.Database.Driver)
	}
	dsn, err := databaseDSN(cfg)
	if err != nil {
		return "", err
	}
	path := strings.TrimPrefix(dsn, "file:")
	if i := strings.IndexByte(path, '?'); i >= 0 {
		if strings.Contains(path[i:], "mode=memory") {
			path = ""
		} else {
			path = path[:i]
		}
	}
	if path == "" || path == ":memory:" {
		return "", errors.New("the configured database is in memory, there is no file to delete")
	}
	return path, nil
}

func init() {
	rootCmd.AddCommand(dbCmd)
	dbCmd.AddCommand(resetCmd)
}

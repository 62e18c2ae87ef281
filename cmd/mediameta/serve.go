package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"media-meta/internal/config"
	"media-meta/internal/server"
)

var port int

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the generation service and media pages.",
	Long: `Starts a local web server exposing the generate and test-connection endpoints,
the attachment API and media-details pages with the generator panel injected.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		a, err := openApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		if !cmd.Flags().Changed("port") {
			port = a.cfg.Server.Port
		}
		if len(a.cfg.Users) == 0 {
			a.log.Warn("no users configured; every authenticated endpoint will reject requests")
		}
		if a.cfg.Server.Secret == "" {
			a.log.Warn("server.secret is not set; nonces will not survive a restart")
		}

		gw, err := a.gateway()
		if err != nil {
			return err
		}
		auth, err := server.NewAuthenticator(a.cfg.Server.Secret, a.cfg.Users)
		if err != nil {
			return err
		}
		srv, err := server.New(server.Options{
			Store:        a.store,
			Gateway:      gw,
			Auth:         auth,
			Logger:       a.log,
			GenerateRate: a.cfg.Server.GenerateRate,
		})
		if err != nil {
			return err
		}

		// Pick up API key changes without a restart.
		config.Watch()

		fmt.Printf("Starting server on port %d...\n", port)
		return srv.Start(ctx, port)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().IntVarP(&port, "port", "p", 8080, "Port to run the server on")
}

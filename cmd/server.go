package cmd

import (
	"context"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/bascanada/forklift-ops/pkg/api"
	"github.com/bascanada/forklift-ops/pkg/factory"
	"github.com/bascanada/forklift-ops/pkg/server"
)

var (
	port  int
	host  string
	watch bool
)

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Start the forklift-ops HTTP API",
	Long:  `Starts an HTTP server exposing lookups, polls, stats, step updates and message dispatch.`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		logger := currentLogger()

		logger.Info("loading configuration", "path", configPath)
		backends, err := loadBackends()
		if err != nil {
			return err
		}
		defer func() {
			if err := backends.Close(); err != nil {
				logger.Error("closing backends failed", "err", err)
			}
		}()

		ctx, cancel := context.WithCancel(cmd.Context())
		defer cancel()

		service, err := backends.Service()
		if err != nil {
			return err
		}
		// the STOMP sink connects in the background so startup never waits on the broker
		dispatcher, err := backends.Dispatcher(ctx, factory.ConnectBackground)
		if err != nil {
			return err
		}

		s := server.NewServer(host, strconv.Itoa(port), service, dispatcher, logger, api.OpenAPISpec)

		if watch {
			path := configPath
			if path == "" {
				path = defaultWatchPath()
			}
			watcher, err := server.NewConfigWatcher(s, path, logger)
			if err != nil {
				return err
			}
			defer watcher.Stop()
			if err := watcher.Start(ctx); err != nil {
				return err
			}
		}

		return s.Start(ctx)
	},
}

func init() {
	serverCmd.Flags().IntVarP(&port, "port", "p", 8080, "Port to listen on")
	serverCmd.Flags().StringVarP(&host, "host", "H", "0.0.0.0", "Host to bind to")
	serverCmd.Flags().BoolVarP(&watch, "watch", "w", false, "Reload the config file when it changes")
}

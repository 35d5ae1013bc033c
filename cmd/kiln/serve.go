package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aretw0/kiln"
	httpAdapter "github.com/aretw0/kiln/internal/adapters/http"
	"github.com/aretw0/kiln/internal/cli"
	"github.com/aretw0/kiln/pkg/observability"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the plan inspection HTTP server",
	Long: `Serves the flattened plan, its Mermaid graph and its ninja serialization over HTTP.
The server never executes the plan.`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		port, _ := cmd.Flags().GetString("port")
		opts := runOptions(cmd, nil)

		engine, closer, err := cli.OpenEngine(opts)
		if err != nil {
			fmt.Printf("Error initializing kiln: %v\n", err)
			os.Exit(1)
		}
		defer closer()

		handler := httpAdapter.NewHandler(&httpAdapter.Server{
			Engine:  engine,
			Version: kiln.Version,
			Metrics: observability.NewMetrics().Handler(),
		})

		srv := &http.Server{
			Addr:              ":" + port,
			Handler:           handler,
			ReadHeaderTimeout: 5 * time.Second,
		}

		// Channel to listen for errors coming from the listener.
		serverErrors := make(chan error, 1)

		go func() {
			fmt.Printf("Starting kiln server on %s\n", srv.Addr)
			fmt.Printf("Serving plan: %s\n", opts.PlanPath)
			serverErrors <- srv.ListenAndServe()
		}()

		shutdown := make(chan os.Signal, 1)
		signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

		select {
		case err := <-serverErrors:
			fmt.Printf("Server error: %v\n", err)
			os.Exit(1)

		case sig := <-shutdown:
			fmt.Printf("\nStart shutdown... Signal: %v\n", sig)

			// Give outstanding requests a deadline for completion.
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()

			if err := srv.Shutdown(ctx); err != nil {
				fmt.Printf("Graceful shutdown did not complete in %v: %v\n", 5*time.Second, err)
				if err := srv.Close(); err != nil {
					fmt.Printf("Error killing server: %v\n", err)
				}
			}
			fmt.Println("kiln server stopped gracefully")
		}
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringP("port", "p", "8080", "Port to listen on")
}

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/truongthanh96/Word2Vec/internal/metrics"
	"github.com/truongthanh96/Word2Vec/internal/server"
	"github.com/spf13/cobra"
)

var (
	servePort      int
	serveHost      string
	serveIteration int64
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP query server",
	Long: `Start an HTTP server answering nearest-neighbor and projection queries
against a checkpoint.

Examples:
  w2v serve
  w2v serve --port 8080
  w2v serve --host 0.0.0.0 --iteration 20000`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "Port to listen on (default from config)")
	serveCmd.Flags().StringVar(&serveHost, "host", "", "Host to bind to (default from config)")
	serveCmd.Flags().Int64Var(&serveIteration, "iteration", -1, "Checkpoint iteration (default latest)")
}

func runServe(cmd *cobra.Command, args []string) error {
	e, err := initEnv()
	if err != nil {
		return err
	}
	if servePort > 0 {
		e.cfg.Server.Port = servePort
	}
	if serveHost != "" {
		e.cfg.Server.Host = serveHost
	}

	st, err := e.openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	m := metrics.New()
	svc, cp, err := e.loadInspector(context.Background(), st, serveIteration, m)
	if err != nil {
		return err
	}

	srv := server.New(svc, st, server.Config{
		Host:         e.cfg.Server.Host,
		Port:         e.cfg.Server.Port,
		ProgressPath: e.path(progressFile),
		Logger:       e.log,
		Metrics:      m,
	})

	// Handle graceful shutdown
	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-done
		fmt.Println("\nShutting down...")
		srv.Shutdown()
	}()

	fmt.Printf("Serving checkpoint at iteration %d on http://%s\n", cp.Iteration, e.cfg.Addr())
	fmt.Println("Press Ctrl+C to stop")
	fmt.Println()
	fmt.Println("Endpoints:")
	fmt.Println("  GET  /similar?word=w&top_k=n - Nearest neighbors")
	fmt.Println("  POST /similar                - Nearest neighbors (JSON body)")
	fmt.Println("  GET  /projection?limit=n     - 2-D projection")
	fmt.Println("  GET  /stats                  - Model and training statistics")
	fmt.Println("  GET  /health                 - Health check")
	fmt.Println("  GET  /metrics                - Prometheus metrics")

	return srv.Start()
}

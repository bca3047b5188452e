// Command echoserver is a demonstration harness for the reactor
// library: it loads a small YAML config, builds a reactor.TcpServer
// with a configurable worker count, and echoes back whatever each
// connection sends. It is not part of the library's public contract —
// see SPEC_FULL.md's Configuration section.
package main

import (
	"fmt"
	"log"

	"github.com/nvthreads/reactor"
	"github.com/nvthreads/reactor/internal/conf"
	"github.com/spf13/cobra"
)

var confPath string

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Fatal(err)
	}
}

var rootCmd = &cobra.Command{
	Use:   "echoserver",
	Short: "Runs a reactor-backed echo server from a YAML config file.",
	Long:  `echoserver reads the specified YAML configuration file and starts a reactor.TcpServer that echoes every message it receives.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := conf.LoadFromFile(confPath)
		if err != nil {
			log.Fatalf("failed to load configuration: %v", err)
		}
		if err := run(cfg); err != nil {
			log.Fatalf("echoserver: %v", err)
		}
	},
}

func init() {
	rootCmd.Flags().StringVarP(&confPath, "config", "c", "config.yaml", "path to the configuration file")
}

func run(cfg *conf.EchoConfig) error {
	level := parseLevel(cfg.Log.Level)
	logger := reactor.NewLogger(level)

	baseLoop, err := reactor.NewEventLoop(reactor.WithEventLoopLogger(logger))
	if err != nil {
		return fmt.Errorf("new base loop: %w", err)
	}

	reuse := reactor.NoReusePort
	if cfg.Server.ReusePort {
		reuse = reactor.ReusePort
	}

	srv, err := reactor.NewTcpServer(baseLoop, cfg.Listen, "echoserver",
		reactor.WithLogger(logger),
		reactor.WithReusePort(reuse),
		reactor.WithHighWaterMark(cfg.Server.HighWaterMark),
	)
	if err != nil {
		return fmt.Errorf("new tcp server: %w", err)
	}
	srv.SetThreadNum(cfg.Server.Threads)

	srv.SetConnectionCallback(func(conn *reactor.TcpConnection) {
		if conn.Connected() {
			logger.Infof("connection established: %s from %s", conn.Name(), conn.PeerAddress())
		} else {
			logger.Infof("connection closed: %s", conn.Name())
		}
	})
	srv.SetMessageCallback(func(conn *reactor.TcpConnection, buf *reactor.Buffer, t reactor.Timestamp) {
		conn.Send(buf.RetrieveAllString())
	})
	srv.SetHighWaterMarkCallback(func(conn *reactor.TcpConnection, currentSize int) {
		logger.Warnf("connection %s crossed high water mark: %d bytes pending", conn.Name(), currentSize)
	})

	if err := srv.Start(); err != nil {
		return fmt.Errorf("start server: %w", err)
	}
	logger.Infof("echoserver listening on %s with %d worker threads", cfg.Listen, cfg.Server.Threads)
	baseLoop.Loop()
	return nil
}

func parseLevel(s string) reactor.LogLevel {
	switch s {
	case "debug":
		return reactor.Debug
	case "warn":
		return reactor.Warn
	case "error":
		return reactor.Error
	case "none":
		return reactor.None
	default:
		return reactor.Info
	}
}

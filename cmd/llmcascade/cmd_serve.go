package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/spf13/cobra"

	"llmcascade/internal/supervisor"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Supervise a local llama.cpp-server child process until interrupted",
	RunE: func(cmd *cobra.Command, args []string) error {
		ls := cfg.LocalServer

		opts := supervisor.Options{
			BinaryPath: ls.BinaryPath,
			Host:       ls.Host,
			Port:       ls.Port,
			ForceHTTP:  ls.ForceHTTP,
			Args:       ls.ExtraArgs,
			PIDFilePath: pidFilePath(ls.Port),
		}
		sv := supervisor.New(opts)

		ctx, cancel := context.WithTimeout(cmd.Context(), ls.LoadBudget)
		defer cancel()
		if err := sv.EnsureReady(ctx); err != nil {
			return fmt.Errorf("start local server: %w", err)
		}
		fmt.Printf("llama.cpp server ready at %s (transport=%v)\n", sv.Address(), sv.Transport())

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
		<-sigCh

		fmt.Println("shutting down...")
		return sv.Stop(ls.RetryDelay)
	},
}

func pidFilePath(port int) string {
	return os.TempDir() + string(os.PathSeparator) + "llmcascade-" + strconv.Itoa(port) + ".pid"
}

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/dcrodman/blaze/internal"
	"github.com/dcrodman/blaze/internal/core"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Runs the redirector, blaze and auxiliary endpoints",
	Run:   ServeCommand,
}

// ServeCommand is the main entrypoint for running the server. It takes care of
// initializing everything and runs until interrupted.
func ServeCommand(cmd *cobra.Command, args []string) {
	config := loadConfig()
	fmt.Println("using configuration directory:", ConfigFlag)

	// Bind the Controller to one top-level server context so that we can shut down cleanly.
	ctx, cancel := context.WithCancel(context.Background())

	// Register a SIGTERM handler so that Ctrl-C will shut the servers down gracefully.
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	go exitHandler(cancel, c)

	controller := &internal.Controller{Config: config}
	if err := controller.Start(ctx); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func exitHandler(cancel context.CancelFunc, c chan os.Signal) {
	<-c
	fmt.Println("shutting down...")
	cancel()
}

func loadConfig() *core.Config {
	config, err := core.LoadConfig(ConfigFlag)
	if err != nil {
		fmt.Println("error loading config:", err)
		os.Exit(1)
	}
	return config
}

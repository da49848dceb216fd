package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/pkg/errors"

	"github.com/dudu/facekit/internal/config"
	"github.com/dudu/facekit/internal/log"
	"github.com/dudu/facekit/internal/pipeline"
	"github.com/dudu/facekit/internal/server"
)

func main() {
	configPath := flag.String("config", "", "YAML configuration file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	log.Init(log.Options{Level: cfg.Log.Level, File: cfg.Log.File})
	entry := log.With(log.Fields{"cmd": "faceserver"})

	p, err := pipeline.FromConfig(cfg, false, entry)
	if err != nil {
		return errors.Wrap(err, "failed to create pipeline")
	}
	defer p.Close()

	app := server.New(p, cfg.Server.MaxBodyBytes, entry)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sig
		log.Info(log.Fields{"cmd": "faceserver"}, "shutting down")
		if err := app.Shutdown(); err != nil {
			log.Error(log.Fields{"error": err.Error()}, "shutdown failed")
		}
	}()

	log.Info(log.Fields{"addr": cfg.Server.Addr, "body_limit": cfg.Server.MaxBodyBytes}, "listening")
	return app.Listen(cfg.Server.Addr)
}

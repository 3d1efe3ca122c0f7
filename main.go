package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/glennswest/robotserver/config"
	"github.com/glennswest/robotserver/server"
	"github.com/glennswest/robotserver/translog"
)

// Version info - increment based on change magnitude:
// Major (x.0.0): Breaking changes, major rewrites
// Minor (0.y.0): New features, significant enhancements
// Patch (0.0.z): Bug fixes, minor improvements
var Version = "1.0.0"

func main() {
	configPath := flag.String("config", "config.yaml", "Path to config file")
	flag.Parse()

	log.SetFormatter(&log.TextFormatter{
		FullTimestamp: true,
	})

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	log.Infof("Starting robot navigation server v%s", Version)
	log.Infof("  Bind: %s:%d", cfg.Server.BindHost, cfg.Server.BindPort)
	log.Infof("  Read timeout: %s, recharge timeout: %s", cfg.Server.ReadTimeout, cfg.Server.RechargeTimeout)
	log.Infof("  Transcript path: %s", cfg.Transcripts.Path)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		log.Info("shutting down...")
		cancel()
	}()

	var transcript *translog.Writer
	if cfg.Transcripts.Path != "" {
		os.MkdirAll(cfg.Transcripts.Path, 0755)
		transcript = translog.NewWriter(cfg.Transcripts.Path, cfg.Transcripts.RetentionDays)
		defer transcript.Close()

		go func() {
			ticker := time.NewTicker(24 * time.Hour)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					transcript.Cleanup()
				}
			}
		}()
	}

	srv := server.New(cfg.Server, transcript)
	if err := srv.Run(ctx); err != nil {
		log.Fatalf("server error: %v", err)
	}
}

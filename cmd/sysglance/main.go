package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/Dicklesworthstone/sysglance/internal/config"
	"github.com/Dicklesworthstone/sysglance/internal/logging"
	"github.com/Dicklesworthstone/sysglance/internal/sampler"
	"github.com/Dicklesworthstone/sysglance/internal/ui"
)

func main() {
	cfg, err := config.FromFlags(os.Args[1:])
	if errors.Is(err, pflag.ErrHelp) {
		return
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	log, err := logging.New(cfg)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	defer func() { _ = log.Sync() }()

	if cfg.JSONStream {
		err = runStream(cfg, log)
	} else {
		err = ui.RunTUI(cfg, log)
	}
	if err != nil {
		log.Error("exiting", zap.Error(err))
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runStream(cfg config.Config, log *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	s := sampler.New(cfg, log)
	defer func() {
		if err := s.Close(); err != nil {
			log.Warn("closing sampler", zap.Error(err))
		}
	}()
	return ui.Stream(ctx, s, cfg.FrameInterval(), os.Stdout)
}

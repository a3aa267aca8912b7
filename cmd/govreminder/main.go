package main

import (
	"context"
	"errors"
	"flag"
	"io/fs"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"govreminder/internal/app"
	logx "govreminder/pkg/logx"
)

func main() {
	var (
		cfgPath string
		envPath string
		once    bool
	)
	flag.StringVar(&cfgPath, "config", "./config.yaml", "path to config (yaml, json or toml)")
	flag.StringVar(&envPath, "env", ".env", "optional dotenv file with secrets")
	flag.BoolVar(&once, "once", false, "perform a single run even if scheduler.enabled is true")
	flag.Parse()

	boot := logx.NewConsole("info")
	if err := godotenv.Load(envPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
		boot.Warn("dotenv not loaded", logx.String("path", envPath), logx.Err(err))
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	a, err := app.NewApp(cfgPath)
	if err != nil {
		boot.Error("startup failed", logx.Err(err))
		os.Exit(1)
	}

	if once || !a.Resident() {
		_, runErr := a.RunOnce(ctx)
		if err := a.Close(); err != nil {
			boot.Warn("close failed", logx.Err(err))
		}
		if runErr != nil {
			os.Exit(1)
		}
		return
	}

	if err := a.Start(ctx); err != nil {
		boot.Error("start failed", logx.Err(err))
		_ = a.Stop(context.Background(), app.StopFatalError)
		os.Exit(1)
	}

	reason := app.StopSignal
	select {
	case <-ctx.Done():
	case <-a.Done():
		if a.Err() != nil {
			reason = app.StopFatalError
		}
	}

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer stopCancel()
	if err := a.Stop(stopCtx, reason); err != nil {
		boot.Warn("stop failed", logx.Err(err))
	}
	if reason == app.StopFatalError {
		boot.Error("fatal error", logx.Err(a.Err()))
		os.Exit(1)
	}
}

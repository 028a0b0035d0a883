// Copyright (C) 2025, Lux Industries Inc. All rights reserved.
// See the file LICENSE for licensing terms.

// twapd runs the executor bot and the read API over a delayed-execution
// exchange.
package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/luxfi/geth/log"
	"github.com/urfave/cli/v2"
)

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintln(os.Stderr, "twapd: load .env:", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newApp().RunContext(ctx, os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "twapd:", err)
		os.Exit(1)
	}
}

var (
	configFlag = &cli.StringFlag{
		Name:    "config",
		Aliases: []string{"c"},
		Usage:   "path to the JSON configuration",
		Value:   "twapd.json",
		EnvVars: []string{"TWAPD_CONFIG"},
	}
	logLevelFlag = &cli.StringFlag{
		Name:    "log-level",
		Usage:   "override the configured log level (debug, info, warn, error)",
		EnvVars: []string{"TWAPD_LOG_LEVEL"},
	}
	httpAddrFlag = &cli.StringFlag{
		Name:    "http-addr",
		Usage:   "override the configured API listen address",
		EnvVars: []string{"TWAPD_HTTP_ADDR"},
	}
	botFlag = &cli.StringFlag{
		Name:    "bot",
		Usage:   "override the address credited with execution payments",
		EnvVars: []string{"TWAPD_BOT_ADDRESS"},
	}
)

func newApp() *cli.App {
	return &cli.App{
		Name:  "twapd",
		Usage: "delayed-execution oracle AMM executor",
		Flags: []cli.Flag{configFlag},
		Commands: []*cli.Command{
			{
				Name:   "run",
				Usage:  "create the configured pairs, run the executor bot and serve the API",
				Flags:  []cli.Flag{logLevelFlag, httpAddrFlag, botFlag},
				Action: runAction,
			},
			{
				Name:   "check",
				Usage:  "verify the configuration and its curve files",
				Action: checkAction,
			},
		},
		DefaultCommand: "run",
	}
}

// newLogger installs a terminal logger at level as the process default.
func newLogger(level string) log.Logger {
	lvl := log.LevelInfo
	switch level {
	case "debug":
		lvl = log.LevelDebug
	case "warn":
		lvl = log.LevelWarn
	case "error":
		lvl = log.LevelError
	}
	logger := log.NewLogger(log.NewTerminalHandlerWithLevel(os.Stderr, lvl, false))
	log.SetDefault(logger)
	return logger
}

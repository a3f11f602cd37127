package main

import (
	"context"
	"net/http"
	"os"
	"time"

	"github.com/labstack/echo/v5"
	"github.com/labstack/echo/v5/middleware"
	"github.com/urfave/cli/v3"

	"github.com/samcharles93/loom/internal/api"
	"github.com/samcharles93/loom/internal/logger"
	"github.com/samcharles93/loom/internal/toy"
)

func serveCmd() *cli.Command {
	var (
		addr        string
		readTimeout time.Duration
		engineSeed  int64
		hidden      int64
		maxContext  int64
		logLevel    string
	)

	return &cli.Command{
		Name:  "serve",
		Usage: "Serve the generation REST API",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "addr",
				Usage:       "listen address",
				Value:       "127.0.0.1:8080",
				Destination: &addr,
			},
			&cli.DurationFlag{
				Name:        "read-timeout",
				Usage:       "read header timeout",
				Value:       30 * time.Second,
				Destination: &readTimeout,
			},
			&cli.Int64Flag{
				Name:        "engine-seed",
				Usage:       "engine weight seed",
				Value:       1,
				Destination: &engineSeed,
			},
			&cli.Int64Flag{
				Name:        "hidden",
				Usage:       "engine hidden dimension",
				Value:       toy.DefaultHidden,
				Destination: &hidden,
			},
			&cli.Int64Flag{
				Name:        "max-context",
				Aliases:     []string{"ctx", "c"},
				Usage:       "engine context length",
				Value:       toy.DefaultSeqLen,
				Destination: &maxContext,
			},
			&cli.StringFlag{
				Name:        "log-level",
				Usage:       "log level (debug, info, warn, error)",
				Value:       "info",
				Destination: &logLevel,
			},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			cfg := LoadConfig()
			applyServeConfig(c, cfg, &addr, &maxContext, &logLevel)

			log := logger.JSON(os.Stderr, logger.ParseLevel(logLevel))

			eng := toy.NewSized(int(hidden), int(maxContext), engineSeed)
			server := api.NewServer(api.ServerConfig{
				Engine: eng,
				Logger: log,
			})

			e := echo.New()
			e.Use(middleware.RequestLogger())
			e.Use(middleware.Recover())
			server.Register(e)

			log.Info("starting server", "address", addr)
			sc := echo.StartConfig{
				Address: addr,
				BeforeServeFunc: func(srv *http.Server) error {
					srv.ReadHeaderTimeout = readTimeout
					return nil
				},
			}
			return sc.Start(ctx, e)
		},
	}
}

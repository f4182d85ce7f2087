package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v3"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	serve := &cli.Command{
		Name:  "serve",
		Usage: "run the restoration HTTP API",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "addr",
				Usage: "listen address (overrides DEBLUR_ADDR)",
			},
		},
		Action: serveAction,
	}

	app := &cli.Command{
		Name:  "deblur",
		Usage: "asynchronous face image restoration service",
		Commands: []*cli.Command{
			serve,
			{
				Name:  "restore",
				Usage: "restore a single image and exit",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "in",
						Usage:    "input image path",
						Required: true,
					},
					&cli.StringFlag{
						Name:     "out",
						Usage:    "output PNG path",
						Required: true,
					},
				},
				Action: restoreAction,
			},
		},
		DefaultCommand: "serve",
	}

	if err := app.Run(ctx, os.Args); err != nil {
		log.Fatal(err)
	}
}

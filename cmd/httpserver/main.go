package main

import (
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/ruteri/content-attestation-engine/cmd/flags"
	"github.com/ruteri/content-attestation-engine/httpserver"
)

var listenAddrFlag = &cli.StringFlag{
	Name:  "listen-addr",
	Value: "127.0.0.1:8080",
	Usage: "address to listen on for API",
}

func main() {
	app := &cli.App{
		Name:  "attestation-server",
		Usage: "Serve the content attestation and verification API",
		Flags: append(append([]cli.Flag{listenAddrFlag}, flags.AttestationFlags...), flags.CommonFlags...),
		Action: func(cCtx *cli.Context) error {
			logger := flags.SetupLogger(cCtx)

			eng, err := flags.CreateEngine(cCtx, logger)
			if err != nil {
				logger.Error("Failed to assemble attestation engine", "err", err)
				return err
			}

			cfg := flags.ConfigureServer(cCtx, logger, cCtx.String(listenAddrFlag.Name))
			server, err := httpserver.New(cfg, httpserver.NewHandler(eng, logger))
			if err != nil {
				logger.Error("Failed to create server", "err", err)
				return err
			}

			logger.Info("Starting server")
			server.RunInBackground()

			// Wait for termination signal
			exit := make(chan os.Signal, 1)
			signal.Notify(exit, os.Interrupt, syscall.SIGTERM)

			logger.Info("Server is running, press Ctrl+C to stop")
			<-exit
			logger.Info("Shutdown signal received")

			server.Shutdown()
			logger.Info("Server shutdown complete")

			return nil
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

package main

import (
	"context"
	"os"
	"path/filepath"
	"runtime/debug"

	"github.com/urfave/cli"

	"github.com/RestComm/charging-server/internal/logger"
	"github.com/RestComm/charging-server/pkg/factory"
	"github.com/RestComm/charging-server/pkg/service"
)

func main() {
	defer func() {
		if p := recover(); p != nil {
			logger.MainLog.Fatalf("panic: %v\n%s", p, string(debug.Stack()))
		}
	}()

	app := cli.NewApp()
	app.Name = "ocs"
	app.Usage = "Diameter Ro online charging server"
	app.Action = action
	app.Flags = []cli.Flag{
		cli.StringFlag{
			Name:  "config, c",
			Usage: "Load configuration from `FILE`",
		},
	}
	if err := app.Run(os.Args); err != nil {
		logger.MainLog.Errorf("OCS Run Error: %v\n", err)
	}
}

func action(cliCtx *cli.Context) error {
	logger.MainLog.Infoln("OCS version: ", version())

	cfg, err := factory.ReadConfig(cliCtx.String("config"))
	if err != nil {
		return err
	}
	if err := factory.CheckConfigVersion(cfg); err != nil {
		return err
	}

	ocs, err := service.NewApp(context.Background(), cfg)
	if err != nil {
		return err
	}

	ocs.Start()

	return nil
}

func version() string {
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" {
		return info.Main.Version
	}
	return filepath.Base(os.Args[0]) + " (devel)"
}

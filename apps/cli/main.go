package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/Appmaniazar-Projects/Thuto-Dashboard-sub000/core"
	"github.com/Appmaniazar-Projects/Thuto-Dashboard-sub000/core/routes"
	"github.com/Appmaniazar-Projects/Thuto-Dashboard-sub000/core/session"
	"github.com/Appmaniazar-Projects/Thuto-Dashboard-sub000/services/apiclient"
	"github.com/Appmaniazar-Projects/Thuto-Dashboard-sub000/services/firebase"
	logsvc "github.com/Appmaniazar-Projects/Thuto-Dashboard-sub000/services/logger"
	"github.com/Appmaniazar-Projects/Thuto-Dashboard-sub000/services/notify"
	"github.com/Appmaniazar-Projects/Thuto-Dashboard-sub000/storage/drivers"
)

func main() {
	ctx := context.Background()
	conf := core.NewConfig()
	if conf.Storage.Driver == drivers.Memory {
		// a terminal session only survives between runs on disk
		conf.Storage.Driver = drivers.File
	}

	logger := logsvc.NewRollbarLogger(logsvc.NewZap(conf, "cli"), conf)
	logger.Enable(!conf.Debug)
	defer logger.Sync()

	st, closer, err := drivers.Open(ctx, conf)
	errAndDie(err)
	defer closer.Close()

	redirector := routes.NewRedirector()
	api := apiclient.NewFromConfig(conf, st, redirector, logger)

	bridge, err := firebase.NewBridge(ctx, conf, logger)
	errAndDie(err)

	toasts := notify.NewToasts(logger)
	sess := session.NewStore(session.Deps{
		Conf:     conf,
		API:      api,
		Storage:  st,
		Notifier: toasts,
		Logger:   logger,
	})
	sess.Init(ctx)

	// start CLI
	cli := commandLine{
		sess:     sess,
		provider: bridge,
		toasts:   toasts,
		nav:      redirector,
		out:      os.Stdout,
	}
	if err := cli.run(ctx, os.Args); err != nil {
		if err != errHelp {
			fmt.Fprintf(os.Stderr, "\nerror: %s\n", err)
		}
		closer.Close()
		os.Exit(1)
	}
}

func errAndDie(err error) {
	if err != nil {
		log.Fatal(err)
	}
}

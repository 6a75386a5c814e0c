// Command server serves the persisted views over HTTP, streams run status
// over websocket and runs the pipeline on demand or on a schedule.
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"

	"stockpipe/internal/app"
	"stockpipe/pkg/contracts"
)

func main() {
	configPath := flag.String("config", "", "path to a YAML config file")
	version := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *version {
		fmt.Println(contracts.GetFullVersionString())
		return
	}

	application, err := app.NewApplication(*configPath)
	if err != nil {
		slog.Error("failed to initialize application", slog.String("error", err.Error()))
		os.Exit(1)
	}

	if err := application.Run(); err != nil {
		slog.Error("application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

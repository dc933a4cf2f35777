package main

import (
	"fmt"
	"os"
	"time"

	"github.com/charmbracelet/log"
	"github.com/urfave/cli/v2"
)

func newLogger(level string) *log.Logger {
	l := log.NewWithOptions(os.Stderr, log.Options{
		ReportTimestamp: true,
		TimeFormat:      time.RFC3339,
		Prefix:          "bmesh",
	})
	lvl, err := log.ParseLevel(level)
	if err != nil {
		lvl = log.InfoLevel
	}
	l.SetLevel(lvl)
	return l
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "bmesh",
		Usage: "convert meshes to and from the BMESH container",
		Commands: []*cli.Command{
			exportCommand(),
			infoCommand(),
			gltfCommand(),
		},
	}
}

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "bmesh:", err)
		os.Exit(1)
	}
}

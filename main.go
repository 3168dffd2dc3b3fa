package main

import (
	"log/slog"
	"os"

	"github.com/alecthomas/kong"
	"github.com/jtarchie/discovery/commands"
	_ "github.com/jtarchie/discovery/orchestra/docker"
	_ "github.com/jtarchie/discovery/orchestra/native"
	_ "github.com/jtarchie/discovery/storage/sqlite"
	"github.com/lmittmann/tint"
)

type CLI struct {
	Server   commands.Server         `cmd:"" help:"Run the HTTP surface and Task Runner worker pool"`
	Generate commands.SchemaGenerate `cmd:"" help:"Generate task/workflow meta-schemas"`
	Validate commands.SchemaValidate `cmd:"" help:"Validate task/workflow schema documents"`

	LogLevel  slog.Level `default:"info"             env:"CI_LOG_LEVEL"   help:"Set the log level (debug, info, warn, error)"`
	AddSource bool       `env:"CI_ADD_SOURCE"        help:"Add source code location to log messages"`
	LogFormat string     `default:"text"             env:"CI_LOG_FORMAT"  enum:"text,json" help:"Set the log format (text, json)"`
}

func main() {
	cli := &CLI{}
	ctx := kong.Parse(cli)

	if cli.LogFormat == "json" {
		slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
			Level:     cli.LogLevel,
			AddSource: cli.AddSource,
		})))
	} else {
		slog.SetDefault(slog.New(tint.NewHandler(os.Stderr, &tint.Options{
			Level:     cli.LogLevel,
			AddSource: cli.AddSource,
		})))
	}

	err := ctx.Run(slog.Default())
	ctx.FatalIfErrorf(err)
}

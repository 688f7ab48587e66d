package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/desertthunder/sputnik/internal/shared"
	"github.com/urfave/cli/v3"
)

func main() {
	app := &cli.Command{
		Name:    "sputnik",
		Usage:   "Move playlists from a Spotify-like catalog into a local, tagged music library",
		Version: "0.1.0",
		Commands: []*cli.Command{
			setupCommand(),
			authCommand(),
			browserAuthCommand(),
			syncCommand(),
			resolveCommand(),
			acquireCommand(),
			enrichCommand(),
			finalizeCommand(),
			replaceCommand(),
		},
	}

	if err := app.Run(context.Background(), os.Args); err != nil {
		if errors.Is(err, shared.ErrNotImplemented) {
			fmt.Fprintln(os.Stderr, "not implemented")
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(exitCode(err))
	}
}

// configFlag is shared by every subcommand that needs to build a [Pipeline].
func configFlag() cli.Flag {
	return &cli.StringFlag{
		Name:    "config",
		Aliases: []string{"c"},
		Usage:   "Path to configuration file",
		Value:   "config.yaml",
	}
}

func dryRunFlag() cli.Flag {
	return &cli.BoolFlag{
		Name:  "dry-run",
		Usage: "Log what would happen without mutating the Registry or filesystem",
	}
}

// withPipeline loads config and builds a [Pipeline] for the duration of fn,
// closing it afterward regardless of fn's outcome.
func withPipeline(ctx context.Context, cmd *cli.Command, fn func(context.Context, *Pipeline) error) error {
	config, err := loadConfig(cmd.String("config"))
	if err != nil {
		return err
	}

	pipeline, err := BuildPipeline(ctx, config)
	if err != nil {
		return err
	}
	defer pipeline.Close()

	return fn(ctx, pipeline)
}

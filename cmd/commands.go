package main

import (
	"context"
	"fmt"
	"os"

	"github.com/desertthunder/sputnik/internal/orchestrator"
	"github.com/desertthunder/sputnik/internal/shared"
	"github.com/urfave/cli/v3"
)

// setupCommand writes a config.yaml template when none exists yet and stops
// there; when the config already exists it loads it and runs Registry
// migrations, mirroring the teacher's setupCommand.
func setupCommand() *cli.Command {
	return &cli.Command{
		Name:  "setup",
		Usage: "Write a config template and run Registry migrations",
		Flags: []cli.Flag{configFlag()},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			path := cmd.String("config")

			if _, err := os.Stat(path); os.IsNotExist(err) {
				if err := shared.CreateConfigFile(path); err != nil {
					return shared.NewConfigError(path, err)
				}
				fmt.Printf("wrote config template to %s — fill in catalogA credentials and output.directory, then re-run setup\n", path)
				return nil
			}

			config, err := loadConfig(path)
			if err != nil {
				return err
			}

			db, err := shared.NewDatabase(config.Database.Path)
			if err != nil {
				return shared.NewRegistryError("open database", err)
			}
			defer db.Close()

			if err := shared.RunMigrations(db); err != nil {
				return shared.NewRegistryError("run migrations", err)
			}

			fmt.Println("Registry ready")
			return nil
		},
	}
}

// syncCommand runs the full five-phase pipeline for one or more playlists
// and/or the saved-tracks library.
func syncCommand() *cli.Command {
	return &cli.Command{
		Name:  "sync",
		Usage: "Ingest, resolve, acquire, enrich, and finalize one or more playlists",
		Flags: []cli.Flag{
			configFlag(),
			dryRunFlag(),
			&cli.StringSliceFlag{
				Name:    "playlist",
				Aliases: []string{"p"},
				Usage:   "Catalog-A playlist id to ingest (repeatable)",
			},
			&cli.BoolFlag{
				Name:  "saved",
				Usage: "Also ingest the saved-tracks library",
			},
			&cli.BoolFlag{
				Name:  "sync",
				Usage: "Sync mode: remove links for tracks no longer in the source (also enabled automatically by --sync-all)",
			},
			&cli.BoolFlag{
				Name:  "sync-all",
				Usage: "Ignore --playlist/--saved and sync every playlist already known to the Registry",
			},
			&cli.BoolFlag{
				Name:  "no-liked",
				Usage: "With --sync-all, skip the Liked Songs pseudo-playlist",
			},
			&cli.BoolFlag{
				Name:  "force-rematch",
				Usage: "Reset previously-failed matches so they are retried this run",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return withPipeline(ctx, cmd, func(ctx context.Context, p *Pipeline) error {
				opts := orchestrator.RunOptions{
					PlaylistIDs:  cmd.StringSlice("playlist"),
					IncludeSaved: cmd.Bool("saved"),
					DryRun:       cmd.Bool("dry-run"),
					Sync:         cmd.Bool("sync"),
					SyncAll:      cmd.Bool("sync-all"),
					NoLiked:      cmd.Bool("no-liked"),
					ForceRematch: cmd.Bool("force-rematch"),
				}

				if !opts.SyncAll && len(opts.PlaylistIDs) == 0 && !opts.IncludeSaved {
					return shared.NewConfigError("playlist", fmt.Errorf("pass at least one --playlist or --saved, or use --sync-all"))
				}

				result, err := p.Orchestrator.Run(ctx, opts, nil)
				if err != nil {
					return err
				}

				orchestrator.PrintSummary(result)
				return nil
			})
		},
	}
}

// resolveCommand runs phase 2 alone, against whatever ingestion already
// persisted, for operators who want to inspect resolution before acquiring.
func resolveCommand() *cli.Command {
	return &cli.Command{
		Name:  "resolve",
		Usage: "Resolve every ingested track against catalog B",
		Flags: []cli.Flag{
			configFlag(),
			dryRunFlag(),
			&cli.BoolFlag{
				Name:  "force-rematch",
				Usage: "Reset previously-failed matches so they are retried this run",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return withPipeline(ctx, cmd, func(ctx context.Context, p *Pipeline) error {
				if cmd.Bool("force-rematch") {
					if _, err := p.Tracks.ResetFailedMatches(""); err != nil {
						return fmt.Errorf("force-rematch: reset failed matches: %w", err)
					}
				}

				resolved, failed, err := p.Orchestrator.ResolveTracks(ctx, cmd.Bool("dry-run"), nil)
				if err != nil {
					return err
				}
				fmt.Printf("resolved %d, unmatched %d\n", resolved, failed)
				return nil
			})
		},
	}
}

// acquireCommand runs phase 3 alone.
func acquireCommand() *cli.Command {
	return &cli.Command{
		Name:  "acquire",
		Usage: "Download and place audio for every resolved track",
		Flags: []cli.Flag{configFlag(), dryRunFlag()},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return withPipeline(ctx, cmd, func(ctx context.Context, p *Pipeline) error {
				stats, err := p.Acquirer.Run(ctx, cmd.Bool("dry-run"))
				if err != nil {
					return err
				}
				fmt.Printf("acquired %d, skipped %d, failed %d\n", stats.Acquired, stats.Skipped, stats.Failed)
				return nil
			})
		},
	}
}

// enrichCommand runs phase 4 alone.
func enrichCommand() *cli.Command {
	return &cli.Command{
		Name:  "enrich",
		Usage: "Fetch lyrics for every acquired track",
		Flags: []cli.Flag{configFlag(), dryRunFlag()},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return withPipeline(ctx, cmd, func(ctx context.Context, p *Pipeline) error {
				stats, err := p.Lyrics.Run(ctx, cmd.Bool("dry-run"))
				if err != nil {
					return err
				}
				fmt.Printf("lyrics found %d, not found %d\n", stats.Found, stats.NotFound)
				return nil
			})
		},
	}
}

// finalizeCommand runs phase 5 alone.
func finalizeCommand() *cli.Command {
	return &cli.Command{
		Name:  "finalize",
		Usage: "Embed tags and lyrics into every acquired track's canonical file",
		Flags: []cli.Flag{configFlag(), dryRunFlag()},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return withPipeline(ctx, cmd, func(ctx context.Context, p *Pipeline) error {
				stats, err := p.Embedder.Run(ctx, cmd.Bool("dry-run"))
				if err != nil {
					return err
				}
				fmt.Printf("embedded %d, failed %d\n", stats.Embedded, stats.Failed)
				return nil
			})
		},
	}
}

// replaceCommand re-acquires a single already-known track from a
// caller-supplied catalog-B URL, per the original tool's --replace path.
func replaceCommand() *cli.Command {
	return &cli.Command{
		Name:  "replace",
		Usage: "Re-acquire a track from a specific catalog-B URL",
		Flags: []cli.Flag{
			configFlag(),
			&cli.StringFlag{
				Name:     "track-id",
				Usage:    "Registry id of the track to replace",
				Required: true,
			},
			&cli.StringFlag{
				Name:     "url",
				Usage:    "Catalog-B URL to re-acquire from",
				Required: true,
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			return withPipeline(ctx, cmd, func(ctx context.Context, p *Pipeline) error {
				track, err := p.Tracks.Get(cmd.String("track-id"))
				if err != nil {
					return shared.NewRegistryError("get track", err)
				}

				if err := p.Acquirer.Replace(ctx, track, cmd.String("url")); err != nil {
					return err
				}

				fmt.Printf("replaced %q by %q\n", track.Title(), track.Artist())
				return nil
			})
		},
	}
}

package main

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/desertthunder/sputnik/internal/acquirer"
	"github.com/desertthunder/sputnik/internal/embedder"
	"github.com/desertthunder/sputnik/internal/filemanager"
	"github.com/desertthunder/sputnik/internal/lyrics"
	"github.com/desertthunder/sputnik/internal/orchestrator"
	"github.com/desertthunder/sputnik/internal/repositories"
	"github.com/desertthunder/sputnik/internal/services"
	"github.com/desertthunder/sputnik/internal/shared"
)

// Pipeline bundles every component a subcommand needs, assembled once per
// invocation from a loaded [shared.Config]. It is the CLI's only dependency
// on the internal packages; every command action works through it.
type Pipeline struct {
	Config *shared.Config

	DB        *sql.DB
	Playlists *repositories.PlaylistRepository
	Tracks    *repositories.TrackRepository
	Dedup     *repositories.TrackDedup
	Links     *repositories.LinkRepository

	CatalogA services.CatalogAClient
	CatalogB services.CatalogBClient

	FileManager *filemanager.Manager
	Acquirer    *acquirer.Acquirer
	Lyrics      *lyrics.Resolver
	Embedder    *embedder.Embedder

	Orchestrator *orchestrator.Orchestrator

	logFiles *shared.PipelineLogFiles
}

// BuildPipeline opens the Registry, authenticates both catalog clients, and
// wires every phase component together, the same assembly order
// PlaylistPorter's Orchestrator.initializeClients follows: config, then
// clients, then persistence, then phase workers.
func BuildPipeline(ctx context.Context, config *shared.Config) (*Pipeline, error) {
	level, _ := shared.ParseLogLevel(config.Logging.Level)
	logger, logFiles, err := shared.NewPipelineLogger(config.Logging.Directory, time.Now().Format("20060102_150405"), level)
	if err != nil {
		return nil, shared.NewConfigError("logging.directory", err)
	}
	shared.SetLogger(logger)
	shared.SetLevel(level)

	db, err := shared.NewDatabase(config.Database.Path)
	if err != nil {
		logFiles.Close()
		return nil, shared.NewRegistryError("open database", err)
	}
	shared.ConfigureDatabase(db, config.Database.MaxOpenConns, config.Database.MaxIdleConns)

	if err := shared.RunMigrations(db); err != nil {
		db.Close()
		logFiles.Close()
		return nil, shared.NewRegistryError("run migrations", err)
	}

	playlists := repositories.NewPlaylistRepository(db)
	tracks := repositories.NewTrackRepository(db)
	dedup := repositories.NewTrackDedup(tracks)
	links := repositories.NewLinkRepository(db)

	catalogA, err := services.NewSpotifyClient(map[string]string{
		"client_id":     config.CatalogA.ClientID,
		"client_secret": config.CatalogA.ClientSecret,
		"redirect_uri":  config.CatalogA.RedirectURI,
	})
	if err != nil {
		db.Close()
		logFiles.Close()
		return nil, shared.NewCatalogAError("construct client", err, false)
	}

	if config.CatalogA.AccessToken == "" {
		db.Close()
		logFiles.Close()
		return nil, shared.NewCatalogAError("authenticate", fmt.Errorf("no saved token: run `sputnik auth` first"), true)
	}
	if err := catalogA.Authenticate(ctx, map[string]string{"access_token": config.CatalogA.AccessToken}); err != nil {
		db.Close()
		logFiles.Close()
		return nil, err
	}

	catalogB := services.NewYouTubeClient(config.CatalogB.ProxyURL)
	if config.CatalogB.CookieFile != "" {
		if err := catalogB.Authenticate(ctx, map[string]string{"auth_file": config.CatalogB.CookieFile}); err != nil {
			db.Close()
			logFiles.Close()
			return nil, err
		}
	}

	fm := filemanager.NewManager(config.Output.Directory)

	acq := acquirer.New(
		fm,
		&acquirer.CommandExtractor{},
		tracks,
		links,
		config.Acquisition.Workers,
		config.Acquisition.FormatPreference,
		config.CatalogB.CookieFile,
	)

	lyricsResolver := lyrics.New(lyrics.BuildProviderChain(config.Lyrics.Providers), tracks, config.Acquisition.Workers)

	emb := embedder.New(embedder.NewMP4Tagger(), nil, tracks, config.Acquisition.Workers)

	orch := orchestrator.New(catalogA, catalogB, playlists, tracks, dedup, links, acq, lyricsResolver, emb)

	return &Pipeline{
		Config:       config,
		DB:           db,
		Playlists:    playlists,
		Tracks:       tracks,
		Dedup:        dedup,
		Links:        links,
		CatalogA:     catalogA,
		CatalogB:     catalogB,
		FileManager:  fm,
		Acquirer:     acq,
		Lyrics:       lyricsResolver,
		Embedder:     emb,
		Orchestrator: orch,
		logFiles:     logFiles,
	}, nil
}

// Close releases the pipeline's database handle and structured log files.
func (p *Pipeline) Close() error {
	var first error
	if p.DB != nil {
		if err := p.DB.Close(); err != nil {
			first = fmt.Errorf("close database: %w", err)
		}
	}
	if p.logFiles != nil {
		if err := p.logFiles.Close(); err != nil && first == nil {
			first = fmt.Errorf("close log files: %w", err)
		}
	}
	return first
}

// loadConfig reads and validates configPath via [shared.LoadConfig]. A
// missing file is an error; setupCommand is what writes the template.
func loadConfig(configPath string) (*shared.Config, error) {
	config, err := shared.LoadConfig(configPath)
	if err != nil {
		return nil, err
	}
	return config, nil
}

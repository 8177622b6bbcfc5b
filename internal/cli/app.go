package cli

import (
	"log/slog"

	"github.com/lowpoly/tagstack/internal/compose"
	"github.com/lowpoly/tagstack/internal/dataset"
	"github.com/lowpoly/tagstack/internal/entity"
	"github.com/lowpoly/tagstack/internal/localstore"
	"github.com/lowpoly/tagstack/internal/remote"
	"github.com/lowpoly/tagstack/internal/schema"
	"github.com/lowpoly/tagstack/internal/tag"
)

// app wires the full client stack for one command invocation.
type app struct {
	cfg      *ClientConfig
	persist  *localstore.Store
	resolver *tag.Resolver
	composer *compose.Client
	events   *dataset.Store
	tips     *dataset.Store
}

// newApp assembles the stack from the config file and global flags.
// needsRemote commands fail fast without a configured base URL; local-only
// commands (reset) pass false.
func newApp(opts *RootOptions, needsRemote bool) (*app, error) {
	cfg, err := LoadClientConfig(opts.Config)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "unreadable config", err)
	}
	if needsRemote && cfg.BaseURL == "" {
		return nil, NewExitError(ExitCommandError, "no base_url configured; set it in tagstack.yaml")
	}

	var storage localstore.Storage
	if cfg.StoragePath != "" {
		storage, err = localstore.OpenSQLite(cfg.StoragePath)
		if err != nil {
			return nil, WrapExitError(ExitCommandError, "open local storage", err)
		}
	} else {
		storage = localstore.NewMemory()
	}
	persist := localstore.NewStore(storage)

	resolver := tag.NewResolver(persist)
	resolver.Hostname = cfg.Hostname
	resolver.Fallback = cfg.FallbackTag
	if opts.Tag != "" {
		pinned := opts.Tag
		resolver.QueryTag = func() string { return pinned }
	}

	validator, err := schema.NewValidator()
	if err != nil {
		// Composition works without ingest validation, just less strictly.
		slog.Warn("schema validator unavailable", "err", err)
		validator = nil
	}

	composer := compose.NewClient(compose.Config{
		Remote:    remote.NewClient(cfg.BaseURL),
		Resolver:  resolver,
		Store:     persist,
		Validator: validator,
		Cache:     compose.NewCache(cfg.CacheTTLDuration(), nil),
	})

	return &app{
		cfg:      cfg,
		persist:  persist,
		resolver: resolver,
		composer: composer,
		events:   dataset.NewStore(entity.KindEvents, composer, persist, resolver),
		tips:     dataset.NewStore(entity.KindTips, composer, persist, resolver),
	}, nil
}

// Close releases the local storage.
func (a *app) Close() {
	if err := a.persist.Close(); err != nil {
		slog.Warn("closing local storage failed", "err", err)
	}
}

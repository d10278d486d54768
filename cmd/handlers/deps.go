package handlers

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"articleforge/internal/apiclient"
	"articleforge/internal/config"
	"articleforge/internal/core"
	"articleforge/internal/fetch"
	"articleforge/internal/llm"
	"articleforge/internal/logger"
	"articleforge/internal/persistence"
	"articleforge/internal/pipeline"
	"articleforge/internal/rewrite"
	"articleforge/internal/search"
)

// deps holds what a command built and must release
type deps struct {
	store    pipeline.ArticleStore
	db       *sql.DB
	renderer fetch.Renderer
	browser  *fetch.BrowserRenderer
}

func (d *deps) Close() {
	if d.browser != nil {
		if err := d.browser.Close(); err != nil {
			logger.Warn("Failed to close browser", "error", err.Error())
		}
	}
	if d.db != nil {
		_ = d.db.Close()
	}
}

// openDatabase connects to the configured SQL database and applies pending migrations
func openDatabase(cfg *config.Config) (*sql.DB, *persistence.Repository, error) {
	db, err := persistence.Open(cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if _, _, err := persistence.Migrate(db, cfg.Database.Driver); err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	repo, err := persistence.NewRepository(db, cfg.Database.Driver)
	if err != nil {
		_ = db.Close()
		return nil, nil, err
	}
	return db, repo, nil
}

// newDeps builds the article store and the page renderer from configuration
func newDeps(cfg *config.Config) (*deps, error) {
	d := &deps{}

	switch cfg.Store.Backend {
	case "database":
		db, repo, err := openDatabase(cfg)
		if err != nil {
			return nil, err
		}
		d.db, d.store = db, repo
		logger.Debug("Using database store", "driver", cfg.Database.Driver)
	default:
		d.store = apiclient.New(cfg.Store.APIBaseURL, config.Duration(cfg.Store.Timeout))
		logger.Debug("Using API store", "base_url", cfg.Store.APIBaseURL)
	}

	ex := cfg.Extraction
	if ex.Browser {
		d.browser = fetch.NewBrowserRenderer(fetch.BrowserConfig{
			Bin:               ex.BrowserBin,
			ControlURL:        ex.ControlURL,
			UserAgent:         ex.UserAgent,
			NavigationTimeout: config.Duration(ex.NavigationTimeout),
			SettleDelay:       config.Duration(ex.SettleDelay),
			Blocked:           fetch.DefaultBrowserConfig().Blocked,
			Scroll:            true,
		})
		d.renderer = d.browser
	} else {
		d.renderer = fetch.NewHTTPRenderer(config.Duration(ex.NavigationTimeout), ex.UserAgent)
	}
	return d, nil
}

// newCascade returns the configured extraction cascade
func newCascade(ex config.Extraction) (*fetch.Cascade, error) {
	if ex.StrategiesFile != "" {
		return fetch.LoadCascade(ex.StrategiesFile)
	}
	cc := fetch.DefaultCascadeConfig()
	if ex.MinLength > 0 {
		cc.MinLength = ex.MinLength
	}
	if ex.MaxLength > 0 {
		cc.MaxLength = ex.MaxLength
	}
	return fetch.NewCascade(cc)
}

// newOrchestrator wires search, extraction and synthesis around store.
// Missing credentials degrade to no references and a pass-through rewrite.
func newOrchestrator(ctx context.Context, cfg *config.Config, store pipeline.ArticleStore, renderer fetch.Renderer) (*pipeline.Orchestrator, error) {
	settings := search.ProviderSettings{
		Type:      search.ProviderType(cfg.Search.Provider),
		UserAgent: cfg.Extraction.UserAgent,
		Timeout:   config.Duration(cfg.Search.Timeout),
	}
	if config.HasValidGoogleSearch() {
		settings.GoogleAPIKey = cfg.Search.Google.APIKey
		settings.GoogleSearchID = cfg.Search.Google.SearchID
	}
	if config.HasValidSerpAPI() {
		settings.SerpAPIKey = cfg.Search.SerpAPI.APIKey
	}
	provider, err := search.NewProvider(ctx, settings)
	if err != nil {
		return nil, err
	}
	if provider == nil {
		logger.Warn("Search provider not configured, articles will be enhanced without references", "provider", cfg.Search.Provider)
	}

	refCfg := search.DefaultReferenceConfig()
	refCfg.BrandTerms = cfg.Search.BrandTerms
	refCfg.OwnDomains = cfg.Search.OwnDomains
	refCfg.QueryDelay = config.Duration(cfg.Search.QueryDelay)
	finder := search.NewReferenceSearch(provider, refCfg)

	var gen llm.Generator
	if config.HasValidGemini() {
		client, err := llm.NewClient(ctx, llm.Config{
			APIKey:  cfg.AI.Gemini.APIKey,
			Model:   cfg.AI.Gemini.Model,
			Timeout: config.Duration(cfg.AI.Gemini.Timeout),
		})
		if err != nil {
			return nil, err
		}
		gen = client
	} else {
		logger.Warn("Gemini API key not configured, articles will be stored without a rewrite")
	}

	opts := rewrite.DefaultOptions()
	opts.Model = cfg.AI.Gemini.Model
	if cfg.AI.Gemini.MaxTokens > 0 {
		opts.MaxTokens = cfg.AI.Gemini.MaxTokens
	}
	opts.Temperature = llm.Float32(cfg.AI.Gemini.Temperature)

	cascade, err := newCascade(cfg.Extraction)
	if err != nil {
		return nil, err
	}

	return pipeline.NewOrchestrator(
		store,
		finder,
		fetch.NewExtractor(renderer, cascade),
		rewrite.New(gen, opts),
		pipeline.Config{
			ReferenceCount: cfg.Pipeline.ReferenceCount,
			ExtractDelay:   config.Duration(cfg.Pipeline.ExtractDelay),
		},
	), nil
}

// describeError adds a hint for failures a user can act on
func describeError(cfg *config.Config, err error) error {
	switch {
	case err == nil:
		return nil
	case cfg.Store.Backend != "database" && apiclient.IsUnavailable(err):
		return fmt.Errorf("%w\n\nThe articles API at %s is not reachable. Start it with 'articleforge serve' or use --store database", err, cfg.Store.APIBaseURL)
	case errors.Is(err, core.ErrInvalidID):
		return fmt.Errorf("%w: article IDs are 24 hexadecimal characters", err)
	default:
		return err
	}
}

// Package app wires the row store, config and outbound clients into one
// aggregate the server and CLI share.
package app

import (
	"context"
	"database/sql"
	"log/slog"
	"net/http"
	"time"

	"tripline/internal/access"
	"tripline/internal/assistant"
	"tripline/internal/assistant/llm"
	"tripline/internal/config"
	"tripline/internal/events"
	"tripline/internal/geocode"
	"tripline/internal/repo"
)

type App struct {
	DB       *sql.DB
	Repo     repo.Repo
	Events   events.Writer
	Access   access.Evaluator
	Config   *config.Config
	LLM      *llm.Client
	Geocoder *geocode.Client
	Logger   *slog.Logger
}

func New(db *sql.DB, cfg *config.Config, logger *slog.Logger) App {
	if logger == nil {
		logger = slog.Default()
	}
	r := repo.Repo{DB: db}
	timeout := time.Duration(cfg.Assistant.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 45 * time.Second
	}
	models := []string{cfg.Assistant.PrimaryModel}
	if cfg.Assistant.FallbackModel != "" {
		models = append(models, cfg.Assistant.FallbackModel)
	}
	return App{
		DB:     db,
		Repo:   r,
		Events: events.Writer{DB: db},
		Access: access.Evaluator{Repo: r},
		Config: cfg,
		LLM: &llm.Client{
			BaseURL:    cfg.Assistant.Endpoint,
			APIKey:     cfg.APIKey(),
			Models:     models,
			HTTPClient: &http.Client{Timeout: timeout},
			Logger:     logger.With("component", "llm"),
		},
		Geocoder: &geocode.Client{
			Endpoints:  geocodeEndpoints(cfg),
			MaxResults: cfg.Geocode.MaxResults,
			Logger:     logger.With("component", "geocode"),
		},
		Logger: logger,
	}
}

func geocodeEndpoints(cfg *config.Config) []string {
	var res []string
	if cfg.Geocode.PrimaryEndpoint != "" {
		res = append(res, cfg.Geocode.PrimaryEndpoint)
	}
	if cfg.Geocode.FallbackEndpoint != "" {
		res = append(res, cfg.Geocode.FallbackEndpoint)
	}
	return res
}

// Executor returns the assistant action executor bound to this app.
func (a App) Executor() assistant.Executor {
	return assistant.Executor{Repo: a.Repo, Logger: a.Logger.With("component", "assistant")}
}

// Log appends one event row in its own transaction. Mutations that already
// hold a transaction append through Events directly.
func (a App) Log(ctx context.Context, evtType string, planID int64, entityKind, entityID string, userID int64, payload events.EventPayload) error {
	tx, err := a.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := a.Events.Append(ctx, tx, evtType, planID, entityKind, entityID, userID, payload); err != nil {
		return err
	}
	return tx.Commit()
}

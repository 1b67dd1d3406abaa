package app

import (
	"context"
	"fmt"
	"log"

	"github.com/brifyai/pptx/internal/analysis"
	"github.com/brifyai/pptx/internal/config"
	"github.com/brifyai/pptx/internal/server"
	"github.com/brifyai/pptx/internal/server/handler"
	"github.com/brifyai/pptx/internal/vision"
)

type App struct {
	server *server.Server
	stores *stores
}

func New() (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return NewWithConfig(context.Background(), cfg)
}

func NewWithConfig(ctx context.Context, cfg *config.Config) (*App, error) {
	st, err := initStores(cfg)
	if err != nil {
		return nil, err
	}

	opts := analysis.Options{
		Mappings:  st.mappings,
		Documents: st.documents,
		Workers:   cfg.Workers,
	}
	if det, err := NewDetector(ctx, cfg); err != nil {
		log.Printf("vision: disabled: %v", err)
	} else if det != nil {
		opts.Detector = det
	}
	if cfg.SofficePath != "" {
		opts.Renderer = vision.NewSofficeRenderer(cfg.SofficePath)
		log.Printf("vision: rendering with %s", cfg.SofficePath)
	}

	svc, err := analysis.New(opts)
	if err != nil {
		return nil, err
	}
	mux := server.NewMux(handler.NewTemplateHandler(svc))

	return &App{
		server: server.New(cfg.Port, mux),
		stores: st,
	}, nil
}

// NewDetector returns nil when no Gemini key is configured.
func NewDetector(ctx context.Context, cfg *config.Config) (vision.Detector, error) {
	if !cfg.Gemini.Enabled() {
		return nil, nil
	}
	det, err := vision.NewGeminiDetector(ctx, vision.GeminiConfig{
		APIKey:     cfg.Gemini.APIKey,
		Model:      cfg.Gemini.Model,
		MaxRetries: cfg.Gemini.MaxRetries,
	})
	if err != nil {
		return nil, err
	}
	log.Printf("vision: gemini model=%s", cfg.Gemini.Model)
	return det, nil
}

func (a *App) Start() error {
	return a.server.Start()
}

func (a *App) Shutdown(ctx context.Context) error {
	err := a.server.Shutdown(ctx)
	if a.stores.db != nil {
		if cerr := a.stores.db.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}
	return err
}

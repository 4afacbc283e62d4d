package server

import (
	"github.com/rs/zerolog/log"
	"github.com/tdewolff/minify/v2"
	"github.com/tdewolff/minify/v2/json"

	"github.com/woozymasta/geoprops/internal/calc"
	"github.com/woozymasta/geoprops/internal/config"
	"github.com/woozymasta/geoprops/internal/geo"
	"github.com/woozymasta/geoprops/internal/render"
)

const mimeJSON = "application/json"

// FeatureCalculator is the pipeline driven by the handlers; *calc.Calculator implements it.
type FeatureCalculator interface {
	Validate(payload []byte) (*geo.Feature, error)
	Process(payload []byte) (*geo.Feature, calc.Derived, error)
	Transformer() *geo.Transformer
}

// ServerContext holds dependencies for request handlers.
type ServerContext struct {
	Config     *config.Config
	Calculator FeatureCalculator
	Renderer   *render.Renderer
	minifier   *minify.M
}

// NewServerContext builds the calculator and renderer for the configured CRS pair.
// It fails on configuration the service cannot run with, such as an unknown CRS.
func NewServerContext(cfg *config.Config) (*ServerContext, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	t, err := cfg.Transformer()
	if err != nil {
		return nil, err
	}

	calculator, err := calc.New(t)
	if err != nil {
		return nil, err
	}

	renderer, err := render.New(cfg.Preview, t)
	if err != nil {
		return nil, err
	}

	m := minify.New()
	m.AddFunc(mimeJSON, json.Minify)

	log.Info().
		Str("input_crs", t.Source().Code()).
		Str("output_crs", t.Target().Code()).
		Int("preview_size", renderer.Size()).
		Int64("max_body_bytes", cfg.Limits.MaxBodyBytes).
		Msg("Server context initialized successfully")

	return &ServerContext{
		Config:     cfg,
		Calculator: calculator,
		Renderer:   renderer,
		minifier:   m,
	}, nil
}

// compact strips insignificant whitespace from a JSON payload for logging.
// Payloads that do not minify are returned as-is.
func (s *ServerContext) compact(payload []byte) []byte {
	out, err := s.minifier.Bytes(mimeJSON, payload)
	if err != nil {
		return payload
	}
	return out
}

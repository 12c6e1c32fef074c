// Package config resolves the settings of a strata project: built-in
// defaults, then strata.yaml (or .json), then .env and STRATA_* variables.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/aretw0/strata/pkg/domain"
	"github.com/aretw0/strata/pkg/schema"
	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// DefaultFile is the configuration file looked up in the project directory.
const DefaultFile = "strata.yaml"

// Image reference modes.
const (
	ImageRefURI    = "uri"
	ImageRefDigest = "digest"
)

// Config holds every tunable of a project. Paths are relative to the
// project directory unless absolute.
type Config struct {
	Layers      string   `yaml:"layers" json:"layers" env:"STRATA_LAYERS_DIR"`
	Rules       string   `yaml:"rules" json:"rules" env:"STRATA_RULES"`
	Custom      string   `yaml:"custom" json:"custom" env:"STRATA_CUSTOM"`
	LayerOrder  []string `yaml:"layerOrder" json:"layerOrder" env:"STRATA_LAYER_ORDER" envSeparator:","`
	Output      string   `yaml:"output" json:"output" env:"STRATA_OUTPUT_DIR"`
	ResetOutput bool     `yaml:"resetOutput" json:"resetOutput" env:"STRATA_RESET_OUTPUT"`

	Concurrency     int `yaml:"concurrency" json:"concurrency" env:"STRATA_CONCURRENCY"`
	MaxRerolls      int `yaml:"maxRerolls" json:"maxRerolls" env:"STRATA_MAX_REROLLS"`
	CategoryRetries int `yaml:"categoryRetries" json:"categoryRetries" env:"STRATA_CATEGORY_RETRIES"`
	CacheSize       int `yaml:"cacheSize" json:"cacheSize" env:"STRATA_CACHE_SIZE"`
	CanvasWidth     int `yaml:"canvasWidth" json:"canvasWidth" env:"STRATA_CANVAS_WIDTH"`
	CanvasHeight    int `yaml:"canvasHeight" json:"canvasHeight" env:"STRATA_CANVAS_HEIGHT"`
	OutputWidth     int `yaml:"outputWidth" json:"outputWidth" env:"STRATA_OUTPUT_WIDTH"`
	OutputHeight    int `yaml:"outputHeight" json:"outputHeight" env:"STRATA_OUTPUT_HEIGHT"`

	Collection  string `yaml:"collection" json:"collection" env:"STRATA_COLLECTION"`
	Description string `yaml:"description" json:"description" env:"STRATA_DESCRIPTION"`
	// ImageURI is expanded per token; {cid} comes from ImageCID, {file}
	// is the stored image name.
	ImageURI       string   `yaml:"imageURI" json:"imageURI" env:"STRATA_IMAGE_URI"`
	ImageCID       string   `yaml:"imageCID" json:"imageCID" env:"STRATA_IMAGE_CID"`
	ImageRef       string   `yaml:"imageRef" json:"imageRef" env:"STRATA_IMAGE_REF"`
	HideAttributes []string `yaml:"hideAttributes" json:"hideAttributes" env:"STRATA_HIDE_ATTRIBUTES" envSeparator:","`

	RedisAddr    string `yaml:"redisAddr" json:"redisAddr" env:"STRATA_REDIS_ADDR"`
	SQLitePath   string `yaml:"sqlitePath" json:"sqlitePath" env:"STRATA_SQLITE_PATH"`
	MetricsAddr  string `yaml:"metricsAddr" json:"metricsAddr" env:"STRATA_METRICS_ADDR"`
	OTLPEndpoint string `yaml:"otlpEndpoint" json:"otlpEndpoint" env:"STRATA_OTLP_ENDPOINT"`
	LogLevel     string `yaml:"logLevel" json:"logLevel" env:"STRATA_LOG_LEVEL"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Layers:          "layers",
		Rules:           "rules",
		Custom:          "custom/tokens",
		Output:          "output",
		ResetOutput:     true,
		Concurrency:     5,
		MaxRerolls:      200,
		CategoryRetries: 10,
		CacheSize:       200,
		CanvasWidth:     36,
		CanvasHeight:    36,
		OutputWidth:     domain.DefaultOutputSize,
		OutputHeight:    domain.DefaultOutputSize,
		Collection:      "Strata",
		Description:     "Generated by strata",
		ImageURI:        "ipfs://{cid}/{file}",
		ImageCID:        "CID",
		ImageRef:        ImageRefURI,
		LogLevel:        "info",
	}
}

// Load resolves the configuration of the project at dir. path names the
// configuration file; empty means <dir>/strata.yaml. A missing file or
// .env is not an error.
func Load(dir, path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		path = filepath.Join(dir, DefaultFile)
	}
	if err := cfg.readFile(path); err != nil {
		return nil, err
	}

	if err := godotenv.Load(filepath.Join(dir, ".env")); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) readFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read config %s: %w", path, err)
	}

	if strings.HasSuffix(path, ".json") {
		err = json.Unmarshal(data, c)
	} else {
		err = yaml.Unmarshal(data, c)
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %v", domain.ErrMalformedConfiguration, path, err)
	}
	return nil
}

// Validate reports every out of range value at once.
func (c *Config) Validate() error {
	var errs []error
	positive := func(field string, v int) {
		if v <= 0 {
			errs = append(errs, &schema.ValidationError{Key: field, Reason: "must be positive", Value: v})
		}
	}
	positive("concurrency", c.Concurrency)
	positive("maxRerolls", c.MaxRerolls)
	positive("categoryRetries", c.CategoryRetries)
	positive("cacheSize", c.CacheSize)
	positive("canvasWidth", c.CanvasWidth)
	positive("canvasHeight", c.CanvasHeight)

	switch c.ImageRef {
	case ImageRefURI, ImageRefDigest:
	default:
		errs = append(errs, &schema.ValidationError{Key: "imageRef", Reason: "must be uri or digest", Value: c.ImageRef})
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", domain.ErrMalformedConfiguration, &schema.AggregateError{Errors: errs})
	}
	return nil
}

// Canvas is the native resolution of the layer images.
func (c *Config) Canvas() image.Point {
	return image.Pt(c.CanvasWidth, c.CanvasHeight)
}

// OutputSize returns the clamped output dimensions.
func (c *Config) OutputSize() (int, int) {
	return domain.ClampOutputSize(c.OutputWidth), domain.ClampOutputSize(c.OutputHeight)
}

// ImageTemplate expands {cid} so the result only carries {file}.
func (c *Config) ImageTemplate() string {
	return strings.ReplaceAll(c.ImageURI, "{cid}", c.ImageCID)
}

// Resolve joins rel to dir unless it is absolute.
func Resolve(dir, rel string) string {
	if rel == "" || filepath.IsAbs(rel) {
		return rel
	}
	return filepath.Join(dir, rel)
}

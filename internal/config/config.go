package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/thyrook/boardscribe/internal/board"
	"github.com/thyrook/boardscribe/internal/extractor"
	"github.com/thyrook/boardscribe/internal/locator"
	"github.com/thyrook/boardscribe/internal/logger"
	"github.com/thyrook/boardscribe/internal/model"
	"github.com/thyrook/boardscribe/internal/normalizer"
	"github.com/thyrook/boardscribe/internal/notation"
	"github.com/thyrook/boardscribe/internal/pipeline"
	"github.com/thyrook/boardscribe/internal/validator"
)

// Classifier kinds
const (
	ClassifierTemplate  = "template"
	ClassifierSquareNet = "squarenet"
	ClassifierOccupancy = "occupancy"
)

// Config represents the application configuration
type Config struct {
	Vision      VisionConfig      `json:"vision" yaml:"vision"`
	Recognition RecognitionConfig `json:"recognition" yaml:"recognition"`
	Validation  ValidationConfig  `json:"validation" yaml:"validation"`
	Training    TrainingConfig    `json:"training" yaml:"training"`
	Game        notation.Headers  `json:"game" yaml:"game"`
	Interface   InterfaceConfig   `json:"interface" yaml:"interface"`
	Storage     StorageConfig     `json:"storage" yaml:"storage"`
	Metrics     MetricsConfig     `json:"metrics" yaml:"metrics"`
}

// VisionConfig contains board location and normalization settings
type VisionConfig struct {
	// SampleRate is the analysis rate in frames per second (0 = every frame)
	SampleRate      float64 `json:"sample_rate" yaml:"sample_rate"`
	ConfidenceFloor float64 `json:"confidence_floor" yaml:"confidence_floor"`
	MinAreaFraction float64 `json:"min_area_fraction" yaml:"min_area_fraction"`
	MaxAreaFraction float64 `json:"max_area_fraction" yaml:"max_area_fraction"`
	SmoothingAlpha  float64 `json:"smoothing_alpha" yaml:"smoothing_alpha"`
	ResetThreshold  float64 `json:"reset_threshold" yaml:"reset_threshold"`
	GraceFrames     int     `json:"grace_frames" yaml:"grace_frames"`
	LostAfterFrames int     `json:"lost_after_frames" yaml:"lost_after_frames"`

	NormalizedSize      int    `json:"normalized_size" yaml:"normalized_size"`
	Orientation         string `json:"orientation" yaml:"orientation"`
	CalibrationAttempts int    `json:"calibration_attempts" yaml:"calibration_attempts"`

	// ScreenRegion is the capture area for live mode. Zero width captures the whole display.
	ScreenRegion Region `json:"screen_region" yaml:"screen_region"`
	CaptureFPS   int    `json:"capture_fps" yaml:"capture_fps"`
	Display      int    `json:"display" yaml:"display"`
}

// Region defines a screen capture area
type Region struct {
	X      int `json:"x" yaml:"x"`
	Y      int `json:"y" yaml:"y"`
	Width  int `json:"width" yaml:"width"`
	Height int `json:"height" yaml:"height"`
}

// RecognitionConfig contains square classification settings
type RecognitionConfig struct {
	Classifier       string  `json:"classifier" yaml:"classifier"`
	ModelPath        string  `json:"model_path" yaml:"model_path"`
	ConfidenceFloor  float64 `json:"confidence_floor" yaml:"confidence_floor"`
	Workers          int     `json:"workers" yaml:"workers"`
	MaxUncertainFill int     `json:"max_uncertain_fill" yaml:"max_uncertain_fill"`
}

// ValidationConfig contains position validation settings
type ValidationConfig struct {
	RetryBudget int `json:"retry_budget" yaml:"retry_budget"`
	// InitialTurn is "white" or "black"
	InitialTurn string `json:"initial_turn" yaml:"initial_turn"`
}

// TrainingConfig contains square classifier training settings
type TrainingConfig struct {
	Epochs       int     `json:"epochs" yaml:"epochs"`
	BatchSize    int     `json:"batch_size" yaml:"batch_size"`
	Hidden       int     `json:"hidden" yaml:"hidden"`
	LearningRate float64 `json:"learning_rate" yaml:"learning_rate"`
	Seed         int64   `json:"seed" yaml:"seed"`
}

// InterfaceConfig contains logging settings
type InterfaceConfig struct {
	LogLevel  string `json:"log_level" yaml:"log_level"`
	LogPath   string `json:"log_path" yaml:"log_path"`
	LogFormat string `json:"log_format" yaml:"log_format"`
}

// StorageConfig contains the game archive settings
type StorageConfig struct {
	DBPath string `json:"db_path" yaml:"db_path"`
}

// MetricsConfig contains the Prometheus endpoint settings
type MetricsConfig struct {
	// Addr is the listen address; empty disables the endpoint
	Addr string `json:"addr" yaml:"addr"`
	// Profiling mounts the pprof handlers on the same endpoint
	Profiling bool `json:"profiling" yaml:"profiling"`
}

// DefaultConfig returns a Config with sensible default values.
func DefaultConfig() *Config {
	loc := locator.DefaultConfig()
	norm := normalizer.DefaultConfig()
	ext := extractor.DefaultConfig()
	val := validator.DefaultConfig()
	train := model.DefaultTrainingConfig()

	return &Config{
		Vision: VisionConfig{
			SampleRate:          pipeline.DefaultConfig().SampleRate,
			ConfidenceFloor:     loc.ConfidenceFloor,
			MinAreaFraction:     loc.MinAreaFraction,
			MaxAreaFraction:     loc.MaxAreaFraction,
			SmoothingAlpha:      loc.SmoothingAlpha,
			ResetThreshold:      loc.ResetThreshold,
			GraceFrames:         loc.GraceFrames,
			LostAfterFrames:     loc.LostAfterFrames,
			NormalizedSize:      norm.Size,
			Orientation:         "auto",
			CalibrationAttempts: norm.CalibrationAttempts,
			CaptureFPS:          2,
		},
		Recognition: RecognitionConfig{
			Classifier:       ClassifierTemplate,
			ModelPath:        "data/models/squarenet.gob",
			ConfidenceFloor:  ext.ConfidenceFloor,
			Workers:          ext.Workers,
			MaxUncertainFill: val.MaxUncertainFill,
		},
		Validation: ValidationConfig{
			RetryBudget: val.RetryBudget,
			InitialTurn: "white",
		},
		Training: TrainingConfig{
			Epochs:       train.Epochs,
			BatchSize:    train.BatchSize,
			Hidden:       train.Hidden,
			LearningRate: train.LearningRate,
			Seed:         train.Seed,
		},
		Game: notation.DefaultHeaders(),
		Interface: InterfaceConfig{
			LogLevel:  string(logger.LevelInfo),
			LogFormat: "console",
		},
		Storage: StorageConfig{
			DBPath: "data/games.db",
		},
	}
}

// Load reads and parses the configuration file. Files ending in .yaml or
// .yml are parsed as YAML, everything else as JSON. Missing fields keep
// their defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := DefaultConfig()
	if isYAML(path) {
		err = yaml.Unmarshal(data, cfg)
	} else {
		err = json.Unmarshal(data, cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// LoadOrDefault loads path, falling back to the defaults when it cannot be read
func LoadOrDefault(path string) *Config {
	cfg, err := Load(path)
	if err != nil {
		return DefaultConfig()
	}
	return cfg
}

// Save writes the configuration to a file
func (c *Config) Save(path string) error {
	var (
		data []byte
		err  error
	)
	if isYAML(path) {
		data, err = yaml.Marshal(c)
	} else {
		data, err = json.MarshalIndent(c, "", "  ")
	}
	if err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}
	}
	return os.WriteFile(path, data, 0644)
}

func isYAML(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yaml" || ext == ".yml"
}

// Validate checks the configuration for errors
func (c *Config) Validate() error {
	if _, err := board.ParseOrientation(c.Vision.Orientation); err != nil {
		return fmt.Errorf("vision: %w", err)
	}
	if c.Vision.CaptureFPS <= 0 {
		return fmt.Errorf("vision: capture fps must be positive, got %d", c.Vision.CaptureFPS)
	}
	if c.Vision.ScreenRegion.Width < 0 || c.Vision.ScreenRegion.Height < 0 {
		return fmt.Errorf("vision: screen region must have non-negative size")
	}
	switch c.Recognition.Classifier {
	case ClassifierTemplate, ClassifierOccupancy:
	case ClassifierSquareNet:
		if c.Recognition.ModelPath == "" {
			return fmt.Errorf("recognition: model path required for %s classifier", ClassifierSquareNet)
		}
	default:
		return fmt.Errorf("recognition: unknown classifier %q", c.Recognition.Classifier)
	}
	if c.Recognition.ConfidenceFloor < 0 || c.Recognition.ConfidenceFloor > 1 {
		return fmt.Errorf("recognition: confidence floor must be between 0 and 1, got %.2f", c.Recognition.ConfidenceFloor)
	}
	if c.Training.Epochs <= 0 || c.Training.BatchSize <= 0 || c.Training.Hidden <= 0 {
		return fmt.Errorf("training: epochs, batch size and hidden size must be positive")
	}
	if c.Training.LearningRate <= 0 {
		return fmt.Errorf("training: learning rate must be positive, got %g", c.Training.LearningRate)
	}
	if _, err := logger.ParseLevel(logger.Level(c.Interface.LogLevel)); err != nil {
		return fmt.Errorf("interface: %w", err)
	}

	pc, err := c.Pipeline()
	if err != nil {
		return err
	}
	return pc.Validate()
}

// Pipeline converts the configuration into per-stage settings
func (c *Config) Pipeline() (pipeline.Config, error) {
	orientation, err := board.ParseOrientation(c.Vision.Orientation)
	if err != nil {
		return pipeline.Config{}, err
	}
	turn, err := parseTurn(c.Validation.InitialTurn)
	if err != nil {
		return pipeline.Config{}, err
	}

	pc := pipeline.DefaultConfig()
	pc.SampleRate = c.Vision.SampleRate

	pc.Locator.ConfidenceFloor = c.Vision.ConfidenceFloor
	pc.Locator.MinAreaFraction = c.Vision.MinAreaFraction
	pc.Locator.MaxAreaFraction = c.Vision.MaxAreaFraction
	pc.Locator.SmoothingAlpha = c.Vision.SmoothingAlpha
	pc.Locator.ResetThreshold = c.Vision.ResetThreshold
	pc.Locator.GraceFrames = c.Vision.GraceFrames
	pc.Locator.LostAfterFrames = c.Vision.LostAfterFrames

	pc.Normalizer.Size = c.Vision.NormalizedSize
	pc.Normalizer.Orientation = orientation
	pc.Normalizer.CalibrationAttempts = c.Vision.CalibrationAttempts

	pc.Extractor.ConfidenceFloor = c.Recognition.ConfidenceFloor
	pc.Extractor.Workers = c.Recognition.Workers

	pc.Validator.MaxUncertainFill = c.Recognition.MaxUncertainFill
	pc.Validator.RetryBudget = c.Validation.RetryBudget
	pc.Validator.InitialTurn = turn

	pc.Headers = c.Game
	return pc, nil
}

// Trainer converts the training section into model hyperparameters
func (c *Config) Trainer() model.TrainingConfig {
	tc := model.DefaultTrainingConfig()
	tc.Epochs = c.Training.Epochs
	tc.BatchSize = c.Training.BatchSize
	tc.Hidden = c.Training.Hidden
	tc.LearningRate = c.Training.LearningRate
	tc.Seed = c.Training.Seed
	tc.Schedule = model.StepDecay{Base: c.Training.LearningRate, Rate: 0.5, Every: max(1, c.Training.Epochs/2)}
	return tc
}

// Logger converts the interface section into logger options
func (c *Config) Logger() logger.Options {
	return logger.Options{
		Level:  logger.Level(c.Interface.LogLevel),
		Path:   c.Interface.LogPath,
		Format: c.Interface.LogFormat,
	}
}

func parseTurn(s string) (board.Color, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "white", "w":
		return board.White, nil
	case "black", "b":
		return board.Black, nil
	}
	return board.NoColor, fmt.Errorf("validation: initial turn must be white or black, got %q", s)
}

// EnsureDirectories creates the parent directories of every configured path
func (c *Config) EnsureDirectories() error {
	for _, p := range []string{c.Interface.LogPath, c.Recognition.ModelPath, c.Storage.DBPath} {
		if p == "" {
			continue
		}
		if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
			return fmt.Errorf("failed to create directory for %s: %w", p, err)
		}
	}
	return nil
}

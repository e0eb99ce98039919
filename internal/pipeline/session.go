// Package pipeline composes the per-session frame-to-game stages:
//
//	frame -> locator -> normalizer -> extractor -> validator -> tracker -> game
//
// A Session owns all mutable per-video state (corner smoothing, orientation
// lock, retry counter, move tracker, game record). Frames are processed
// strictly one at a time; only the rules engine is shared between sessions.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/thyrook/boardscribe/internal/board"
	"github.com/thyrook/boardscribe/internal/extractor"
	"github.com/thyrook/boardscribe/internal/frame"
	"github.com/thyrook/boardscribe/internal/locator"
	"github.com/thyrook/boardscribe/internal/metrics"
	"github.com/thyrook/boardscribe/internal/normalizer"
	"github.com/thyrook/boardscribe/internal/notation"
	"github.com/thyrook/boardscribe/internal/rules"
	"github.com/thyrook/boardscribe/internal/tracker"
	"github.com/thyrook/boardscribe/internal/validator"
)

const tracerName = "github.com/thyrook/boardscribe/internal/pipeline"

// Config holds the settings of every stage
type Config struct {
	// SampleRate is the analysis rate hint in frames per second (0 = all).
	SampleRate float64

	Locator    locator.Config
	Normalizer normalizer.Config
	Extractor  extractor.Config
	Validator  validator.Config
	Headers    notation.Headers
}

// DefaultConfig returns a Config with sensible default values.
func DefaultConfig() Config {
	return Config{
		SampleRate: 2,
		Locator:    locator.DefaultConfig(),
		Normalizer: normalizer.DefaultConfig(),
		Extractor:  extractor.DefaultConfig(),
		Validator:  validator.DefaultConfig(),
		Headers:    notation.DefaultHeaders(),
	}
}

// Validate checks the configuration for errors
func (c Config) Validate() error {
	if c.SampleRate < 0 {
		return fmt.Errorf("sample rate must be non-negative, got %.2f", c.SampleRate)
	}
	if err := c.Locator.Validate(); err != nil {
		return fmt.Errorf("locator: %w", err)
	}
	if err := c.Normalizer.Validate(); err != nil {
		return fmt.Errorf("normalizer: %w", err)
	}
	if err := c.Validator.Validate(); err != nil {
		return fmt.Errorf("validator: %w", err)
	}
	return nil
}

// Options carries the collaborators of a session
type Options struct {
	// Engine defaults to rules.NewEngine().
	Engine rules.Engine

	// Detector and Classifier are required for ProcessFrame; sessions fed
	// only through ObservePosition may leave them nil.
	Detector   locator.Detector
	Classifier extractor.Classifier

	Metrics *metrics.Metrics
	Tracer  trace.Tracer
	Logger  *zap.Logger
}

// Session is one independent video analysis
type Session struct {
	mu sync.Mutex

	id     uuid.UUID
	config Config

	sampler    *frame.Sampler
	locator    *locator.Locator
	normalizer *normalizer.Normalizer
	extractor  *extractor.Extractor
	validator  *validator.Validator
	tracker    *tracker.Tracker
	game       *notation.Game

	metrics *metrics.Metrics
	tracer  trace.Tracer
	logger  *zap.Logger
	stats   Stats
}

// NewSession creates a session
func NewSession(config Config, opts Options) (*Session, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	engine := opts.Engine
	if engine == nil {
		engine = rules.NewEngine()
	}
	tracer := opts.Tracer
	if tracer == nil {
		tracer = otel.Tracer(tracerName)
	}
	id := uuid.New()
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.With(zap.String("session", id.String()))

	game := notation.NewGame(engine, config.Headers)
	s := &Session{
		id:         id,
		config:     config,
		sampler:    frame.NewSampler(config.SampleRate),
		normalizer: normalizer.New(config.Normalizer, logger.Named("normalizer")),
		validator:  validator.New(engine, config.Validator, logger.Named("validator")),
		tracker:    tracker.New(engine, game, logger.Named("tracker")),
		game:       game,
		metrics:    opts.Metrics,
		tracer:     tracer,
		logger:     logger,
	}
	if opts.Detector != nil {
		s.locator = locator.New(opts.Detector, config.Locator, logger.Named("locator"))
	}
	if opts.Classifier != nil {
		s.extractor = extractor.New(opts.Classifier, config.Extractor, logger.Named("extractor"))
	}

	logger.Info("Session created", zap.Float64("sample_rate", config.SampleRate))
	return s, nil
}

// ID returns the session identifier
func (s *Session) ID() uuid.UUID { return s.id }

// ProcessFrame runs one frame through every stage. The returned error is
// reserved for cancellation and internal failures; ordinary problems with
// the frame are reported in the Result.
func (s *Session) ProcessFrame(ctx context.Context, f frame.Frame) (Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.locator == nil || s.extractor == nil {
		return Result{}, errors.New("session has no detector or classifier")
	}

	start := time.Now()
	ctx, span := s.tracer.Start(ctx, "pipeline.ProcessFrame",
		trace.WithAttributes(
			attribute.String("session.id", s.id.String()),
			attribute.Int64("frame.index", f.Index),
		),
	)
	defer span.End()

	res, err := s.processFrame(ctx, f)
	s.finish(span, start, res, err)
	return res, err
}

// ObservePosition feeds an already extracted reading to the validator and
// tracker, bypassing the vision stages
func (s *Session) ObservePosition(ctx context.Context, reading extractor.Reading) (Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	start := time.Now()
	_, span := s.tracer.Start(ctx, "pipeline.ObservePosition",
		trace.WithAttributes(attribute.String("session.id", s.id.String())),
	)
	defer span.End()

	if err := ctx.Err(); err != nil {
		s.finish(span, start, Result{}, err)
		return Result{}, err
	}
	res, err := s.observe(Result{}, reading)
	s.finish(span, start, res, err)
	return res, err
}

func (s *Session) finish(span trace.Span, start time.Time, res Result, err error) {
	elapsed := time.Since(start)
	span.SetAttributes(attribute.String("result.kind", res.Kind.String()))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		s.stats.Errors++
	}

	switch res.Kind {
	case Skipped:
		s.stats.FramesSkipped++
	case BoardNotFound:
		s.stats.BoardMisses++
	case MoveCommitted:
		s.stats.MovesCommitted++
	case DesyncWarning:
		s.stats.Desyncs++
	}
	if res.Kind != Skipped {
		s.stats.FramesProcessed++
		s.stats.LastProcessTime = elapsed
		if s.stats.AverageFrameTime == 0 {
			s.stats.AverageFrameTime = elapsed
		} else {
			s.stats.AverageFrameTime = (s.stats.AverageFrameTime + elapsed) / 2
		}
	}
	s.metrics.ObserveFrame(res.Kind.String(), elapsed)
}

func (s *Session) processFrame(ctx context.Context, f frame.Frame) (Result, error) {
	res := Result{FrameIndex: f.Index, Timestamp: f.Timestamp}
	if cur, ok := s.tracker.Current(); ok {
		res.Position = cur
	}

	if !s.sampler.Keep(f.Timestamp) {
		res.Kind = Skipped
		return res, nil
	}
	if err := ctx.Err(); err != nil {
		return res, err
	}

	det, err := s.locator.Locate(ctx, f.Image)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return res, ctxErr
		}
		res.Kind = BoardNotFound
		res.Reason = err
		if errors.Is(err, locator.ErrBoardLost) {
			res.Lost = true
			s.metrics.ObserveBoardLost()
		} else if !errors.Is(err, locator.ErrBoardNotFound) {
			s.logger.Warn("Board detection failed", zap.Int64("frame", f.Index), zap.Error(err))
		}
		return res, nil
	}
	res.Reused = det.Reused

	nb, err := s.normalizer.Normalize(f.Image, det.Region)
	if err != nil {
		res.Reason = err
		if errors.Is(err, normalizer.ErrOrientationPending) {
			res.Kind = PositionUnchanged
			res.Calibrating = true
			return res, nil
		}
		res.Kind = BoardNotFound
		s.logger.Debug("Normalization failed", zap.Int64("frame", f.Index), zap.Error(err))
		return res, nil
	}

	reading, err := s.extractor.Extract(ctx, nb)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return res, ctxErr
		}
		res.Kind = PositionUnchanged
		res.Reason = fmt.Errorf("extraction failed: %w", err)
		s.logger.Warn("Extraction failed", zap.Int64("frame", f.Index), zap.Error(err))
		return res, nil
	}
	s.metrics.ObserveConfidence(reading.MeanConfidence())

	return s.observe(res, reading)
}

// observe runs the validator and tracker; callers hold s.mu
func (s *Session) observe(res Result, reading extractor.Reading) (Result, error) {
	var prev *board.Position
	if cur, ok := s.tracker.Current(); ok {
		prev = &cur
	}
	terminal := s.tracker.State() == tracker.Terminal

	vr, err := s.validator.Validate(reading, prev)
	if err != nil {
		return res, fmt.Errorf("validation failed: %w", err)
	}
	s.metrics.ObserveDecision(vr.Decision.String())

	res.Validated = true
	res.Decision = vr.Decision
	res.Reason = vr.Reason
	res.Issues = vr.Issues
	res.Kind = PositionUnchanged

	var obs tracker.Observation
	switch {
	case terminal:
		// Observed, never committed
	case vr.Decision == validator.Initial:
		obs, err = s.tracker.Start(vr.Position)
		res.Kind = PositionUpdated
	case vr.Decision == validator.Accepted:
		obs, err = s.tracker.Observe(vr.Position)
		if obs.Committed {
			m := obs.Move
			res.Kind = MoveCommitted
			res.Move = &m
			res.Ambiguous = obs.Ambiguous
			s.metrics.ObserveMove(obs.Ambiguous)
		}
	case vr.Decision == validator.Resync:
		obs, err = s.tracker.Resync(vr.Position)
		res.Kind = DesyncWarning
	case vr.Decision == validator.Desync:
		res.Kind = DesyncWarning
	}
	if err != nil {
		return res, err
	}

	if cur, ok := s.tracker.Current(); ok {
		res.Position = cur
	}
	res.Terminal = s.tracker.State() == tracker.Terminal
	res.Outcome = s.game.Outcome()
	if obs.Terminal && !terminal {
		s.logger.Info("Game finished", zap.Stringer("outcome", res.Outcome))
	}
	return res, nil
}

// Run pulls frames from src until it is exhausted or ctx is cancelled.
// handle, when non-nil, receives every result; a handler error stops the run.
func (s *Session) Run(ctx context.Context, src frame.Source, handle func(Result) error) error {
	for {
		f, err := src.Next(ctx)
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to read frame: %w", err)
		}

		res, err := s.ProcessFrame(ctx, f)
		if err != nil {
			return err
		}
		if handle != nil {
			if err := handle(res); err != nil {
				return err
			}
		}
	}
}

// Game returns the session's game record
func (s *Session) Game() *notation.Game { return s.game }

// PGN returns the current PGN export
func (s *Session) PGN() string { return s.game.PGN() }

// FEN returns the current position as FEN
func (s *Session) FEN() string { return s.game.FEN() }

// Moves returns the committed moves
func (s *Session) Moves() []board.Move { return s.game.Moves() }

// Orientation returns the locked board orientation, if any
func (s *Session) Orientation() (board.Orientation, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.normalizer.Orientation()
}

// Stats returns a snapshot of the session counters
func (s *Session) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}

// Close releases the detector
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.locator != nil {
		return s.locator.Close()
	}
	return nil
}

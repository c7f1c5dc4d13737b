package pipeline

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/fpang/postpolish/internal/backend"
	"github.com/fpang/postpolish/internal/jsonutil"
	"github.com/fpang/postpolish/internal/logging"
)

// Mode selects which stage-configuration tier applies to an invocation.
type Mode string

const (
	ModeFast    Mode = "fast"
	ModeQuality Mode = "quality"
)

// Stage is one named step of the pipeline.
type Stage string

const (
	StageUnderstanding Stage = "understanding"
	StageDirection     Stage = "direction"
	StageEnhance       Stage = "enhance"
	StageCaption       Stage = "caption"
	StageEmpathy       Stage = "empathy"
	StageGuardrail     Stage = "guardrail"
)

// Gemini model IDs
//
// | Model Name             | API Model ID               | Use Case                      |
// |------------------------|----------------------------|-------------------------------|
// | Gemini 2.5 Pro         | gemini-2.5-pro             | Stable, high-reasoning tasks  |
// | Gemini 2.5 Flash       | gemini-2.5-flash           | Stable, balanced performance  |
// | Gemini 2.5 Flash-Lite  | gemini-2.5-flash-lite      | High-throughput, lowest cost  |
// | Gemini 3 Pro Image     | gemini-3-pro-image-preview | Advanced image generation     |
const (
	ModelFlashLite = "gemini-2.5-flash-lite"
	ModelFlash     = "gemini-2.5-flash"
	ModelPro       = "gemini-2.5-pro"
	ModelImage     = "gemini-3-pro-image-preview"
)

// StageSpec is the backend configuration for one (mode, stage) cell.
type StageSpec struct {
	Model           string
	Temperature     *float32
	TopP            *float32
	MaxOutputTokens int32
	// Retries is the attempt budget, minimum 1.
	Retries int
}

// SpecTable maps (mode, stage) to a concrete backend configuration. A missing
// cell means the stage is disabled in that mode; callers substitute the other
// mode's spec or skip gracefully.
type SpecTable map[Mode]map[Stage]*StageSpec

// DefaultSpecs builds the stock routing table. Text model identifiers can be
// overridden per tier via POSTPOLISH_FAST_MODEL / POSTPOLISH_QUALITY_MODEL,
// and the image model via POSTPOLISH_IMAGE_MODEL.
func DefaultSpecs() SpecTable {
	fastModel := logging.EnvOrDefault("POSTPOLISH_FAST_MODEL", ModelFlashLite)
	fastText := logging.EnvOrDefault("POSTPOLISH_FAST_TEXT_MODEL", ModelFlash)
	qualityModel := logging.EnvOrDefault("POSTPOLISH_QUALITY_MODEL", ModelPro)
	qualityText := logging.EnvOrDefault("POSTPOLISH_QUALITY_TEXT_MODEL", ModelFlash)
	imageModel := logging.EnvOrDefault("POSTPOLISH_IMAGE_MODEL", ModelImage)

	return SpecTable{
		ModeFast: {
			StageUnderstanding: {Model: fastModel, Temperature: f32(0.3), MaxOutputTokens: 8192, Retries: 2},
			StageDirection:     {Model: fastModel, Temperature: f32(0.6), MaxOutputTokens: 8192, Retries: 2},
			StageEnhance:       {Model: imageModel, Retries: 2},
			StageCaption:       {Model: fastText, Temperature: f32(0.9), MaxOutputTokens: 2048, Retries: 2},
			StageEmpathy:       {Model: fastModel, Temperature: f32(0.7), MaxOutputTokens: 1024, Retries: 2},
			StageGuardrail:     {Model: fastModel, Temperature: f32(0), MaxOutputTokens: 2048, Retries: 2},
		},
		ModeQuality: {
			StageUnderstanding: {Model: qualityText, Temperature: f32(0.3), MaxOutputTokens: 16384, Retries: 3},
			StageDirection:     {Model: qualityModel, Temperature: f32(0.7), TopP: f32(0.95), MaxOutputTokens: 16384, Retries: 3},
			StageEnhance:       {Model: imageModel, Retries: 3},
			StageCaption:       {Model: qualityModel, Temperature: f32(0.9), TopP: f32(0.95), MaxOutputTokens: 4096, Retries: 3},
			StageEmpathy:       {Model: qualityText, Temperature: f32(0.7), MaxOutputTokens: 1024, Retries: 2},
			StageGuardrail:     {Model: qualityModel, Temperature: f32(0), MaxOutputTokens: 4096, Retries: 2},
		},
	}
}

func f32(v float32) *float32 { return &v }

// Router resolves stage configuration and executes backend calls with uniform
// retry and trace-recording semantics. One Router belongs to one orchestrator
// invocation; it is never shared across requests.
type Router struct {
	gen   backend.Generator
	specs SpecTable
	mode  Mode
	trace *traceLog
}

func newRouter(gen backend.Generator, specs SpecTable, mode Mode, trace *traceLog) *Router {
	return &Router{gen: gen, specs: specs, mode: mode, trace: trace}
}

// Mode returns the active mode resolved for this invocation.
func (r *Router) Mode() Mode { return r.mode }

// Spec is the pure (mode, stage) lookup. ok is false when the stage has no
// backend support under that mode.
func (r *Router) Spec(mode Mode, stage Stage) (*StageSpec, bool) {
	stages, ok := r.specs[mode]
	if !ok {
		return nil, false
	}
	spec, ok := stages[stage]
	if !ok || spec == nil {
		return nil, false
	}
	return spec, true
}

// execute runs attempt up to the spec's retry budget. Calls issued under a
// mode other than the invocation's active mode get a single attempt (the
// cross-mode tier of the cascade), as do single-shot calls like rescue
// (maxAttempts = 1). Every attempt appends exactly one trace record, failed
// ones included. On success the result returns immediately; after exhaustion
// the last error is returned for the caller's cascade to handle.
func execute[T any](ctx context.Context, r *Router, stage Stage, mode Mode, maxAttempts int, attempt func(context.Context, *StageSpec) (T, error), validate func(T) error) (T, error) {
	var zero T

	spec, ok := r.Spec(mode, stage)
	if !ok {
		return zero, fmt.Errorf("%w: stage %s under mode %s", ErrStageUnsupported, stage, mode)
	}

	attempts := spec.Retries
	if attempts < 1 {
		attempts = 1
	}
	if mode != r.mode {
		attempts = 1
	}
	if maxAttempts > 0 && maxAttempts < attempts {
		attempts = maxAttempts
	}

	var lastErr error
	for i := 1; i <= attempts; i++ {
		start := time.Now()
		out, err := attempt(ctx, spec)
		if err == nil && validate != nil {
			err = validate(out)
		}

		rec := TraceRecord{
			Stage:      stage,
			Mode:       mode,
			Model:      spec.Model,
			Attempt:    i,
			DurationMS: sinceMS(start),
			OK:         err == nil,
		}
		if spec.Temperature != nil {
			rec.Temperature = *spec.Temperature
		}
		if err != nil {
			rec.Error = err.Error()
		}
		r.trace.append(rec)

		if err == nil {
			return out, nil
		}
		lastErr = err
		log.Warn().
			Err(err).
			Str("stage", string(stage)).
			Str("mode", string(mode)).
			Int("attempt", i).
			Int("budget", attempts).
			Msg("Stage attempt failed")
	}
	return zero, lastErr
}

// CallJSON issues a structured-JSON call and decodes the response into T.
// Empty or unparseable text counts as a failed attempt and is retried within
// the budget, as does a result rejected by check.
func CallJSON[T any](ctx context.Context, r *Router, stage Stage, mode Mode, system string, parts []backend.Part, check func(T) error) (T, error) {
	return execute(ctx, r, stage, mode, 0, func(ctx context.Context, spec *StageSpec) (T, error) {
		var zero T
		text, err := r.gen.GenerateText(ctx, backend.Request{
			Model:           spec.Model,
			System:          system,
			Parts:           parts,
			Temperature:     spec.Temperature,
			TopP:            spec.TopP,
			MaxOutputTokens: spec.MaxOutputTokens,
		})
		if err != nil {
			return zero, err
		}
		if strings.TrimSpace(text) == "" {
			return zero, fmt.Errorf("empty response text")
		}
		return jsonutil.Decode[T](text)
	}, check)
}

// CallText issues a free-text call. Empty or whitespace-only text counts as a
// failed attempt.
func (r *Router) CallText(ctx context.Context, stage Stage, mode Mode, system string, parts []backend.Part) (string, error) {
	return execute(ctx, r, stage, mode, 0, func(ctx context.Context, spec *StageSpec) (string, error) {
		text, err := r.gen.GenerateText(ctx, backend.Request{
			Model:           spec.Model,
			System:          system,
			Parts:           parts,
			Temperature:     spec.Temperature,
			TopP:            spec.TopP,
			MaxOutputTokens: spec.MaxOutputTokens,
		})
		if err != nil {
			return "", err
		}
		if strings.TrimSpace(text) == "" {
			return "", fmt.Errorf("empty response text")
		}
		return text, nil
	}, nil)
}

// CallImage issues an image-generation call with the base photo, any
// reference photos, and the instruction. A response without inline image data
// is a failed attempt, not a nil result. singleShot caps the budget at one
// attempt regardless of the spec.
func (r *Router) CallImage(ctx context.Context, stage Stage, mode Mode, singleShot bool, system, prompt string, base SourceImage, refs []SourceImage) (*backend.ImageResult, error) {
	maxAttempts := 0
	if singleShot {
		maxAttempts = 1
	}

	parts := make([]backend.Part, 0, len(refs)+2)
	parts = append(parts, backend.ImagePart(base.Data, base.MIME))
	for _, ref := range refs {
		parts = append(parts, backend.ImagePart(ref.Data, ref.MIME))
	}
	parts = append(parts, backend.TextPart(prompt))

	return execute(ctx, r, stage, mode, maxAttempts, func(ctx context.Context, spec *StageSpec) (*backend.ImageResult, error) {
		return r.gen.GenerateImage(ctx, backend.Request{
			Model:           spec.Model,
			System:          system,
			Parts:           parts,
			Temperature:     spec.Temperature,
			TopP:            spec.TopP,
			MaxOutputTokens: spec.MaxOutputTokens,
		})
	}, nil)
}

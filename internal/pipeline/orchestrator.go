package pipeline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/fpang/postpolish/internal/backend"
)

// Orchestrator is the sole entry point the UI depends on. It is stateless
// across invocations; each Run owns its own router, trace log, and
// intermediate results. The caller persists the trace id between a create
// response and its refine requests.
type Orchestrator struct {
	gen   backend.Generator
	specs SpecTable
}

// New creates an Orchestrator over the given backend with the default
// routing table.
func New(gen backend.Generator) *Orchestrator {
	return &Orchestrator{gen: gen, specs: DefaultSpecs()}
}

// NewWithSpecs creates an Orchestrator with a custom routing table.
func NewWithSpecs(gen backend.Generator, specs SpecTable) *Orchestrator {
	return &Orchestrator{gen: gen, specs: specs}
}

// resolveMode derives the mode once per invocation: quality when the
// advanced-loop flag is set, else the request's explicit mode, else fast.
func resolveMode(req *Request) Mode {
	if req.AdvancedLoop {
		return ModeQuality
	}
	if req.Mode == ModeQuality {
		return ModeQuality
	}
	return ModeFast
}

// Run executes one pipeline invocation. Only usage errors (a refine without
// its trace id, an out-of-range image index) and contract errors surface as
// errors; every stage failure resolves through its fallback, so a create
// request always yields a complete response.
func (o *Orchestrator) Run(ctx context.Context, req *Request) (*Response, error) {
	// Usage errors are rejected before any backend call is made.
	if req.Refine != nil {
		if req.Refine.TraceID == "" {
			return nil, ErrMissingTraceID
		}
		switch req.Refine.Mode {
		case RefineImage:
			if req.Refine.ImageIndex < 0 || req.Refine.ImageIndex >= len(req.Images) {
				return nil, fmt.Errorf("%w: index %d with %d image(s)", ErrImageIndexOutOfRange, req.Refine.ImageIndex, len(req.Images))
			}
		case RefineCaption:
		default:
			return nil, fmt.Errorf("%w: %q", ErrUnknownRefineMode, req.Refine.Mode)
		}
	}

	mode := resolveMode(req)
	traceID := newTraceID()
	if req.Refine != nil {
		traceID = req.Refine.TraceID
	}
	trace := newTraceLog(traceID)
	r := newRouter(o.gen, o.specs, mode, trace)

	logger := log.With().
		Str("traceId", traceID).
		Str("mode", string(mode)).
		Int("images", len(req.Images)).
		Logger()
	start := time.Now()

	var resp *Response
	if req.Refine != nil {
		resp = o.runRefine(ctx, r, req, trace)
	} else {
		resp = o.runCreate(ctx, r, req, trace)
	}

	logger.Info().
		Dur("duration", time.Since(start)).
		Int("trace_records", len(resp.Debug.Trace)).
		Msg("Pipeline invocation complete")
	return resp, nil
}

// runCreate is the full stage sequence: understanding → direction →
// per-image enhancement → caption and empathic reply (no data dependency
// between the two, so they run concurrently) → assemble.
func (o *Orchestrator) runCreate(ctx context.Context, r *Router, req *Request, trace *traceLog) *Response {
	und := runUnderstanding(ctx, r, req)
	plans := runDirection(ctx, r, req, und)
	images := runEnhancementLoop(ctx, r, req, plans)

	var caption Caption
	var reply string
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		caption = runCaption(ctx, r, req, und)
	}()
	go func() {
		defer wg.Done()
		reply = runEmpathy(ctx, r, req)
	}()
	wg.Wait()

	variant := Variant{
		ID:      "variant-" + uuid.NewString(),
		TraceID: trace.id,
		Caption: caption,
		Images:  images,
		Tone:    und.Tone,
	}

	return &Response{
		TraceID:       trace.id,
		Understanding: und,
		Variants:      []Variant{variant},
		Reply:         reply,
		Debug:         debugBundle(trace, images),
	}
}

// runRefine re-enters the pipeline at the enhancement or caption stage,
// depending on the refine target.
func (o *Orchestrator) runRefine(ctx context.Context, r *Router, req *Request, trace *traceLog) *Response {
	variant := Variant{
		ID:      "variant-" + uuid.NewString(),
		TraceID: trace.id,
	}

	switch req.Refine.Mode {
	case RefineCaption:
		variant.Caption = refineCaption(ctx, r, req)
	case RefineImage:
		idx := req.Refine.ImageIndex
		plan := DirectorPlan{
			Index:  idx,
			Prompt: finishPlanPrompt(req.Refine.Instruction, "", req.Platform, len(req.ReferenceImages) > 0),
		}
		variant.Images = []EnhancedImage{enhanceOne(ctx, r, req, idx, req.Images[idx], plan)}
	}

	return &Response{
		TraceID:  trace.id,
		Variants: []Variant{variant},
		Debug:    debugBundle(trace, variant.Images),
	}
}

func debugBundle(trace *traceLog, images []EnhancedImage) DebugBundle {
	bundle := DebugBundle{Trace: trace.snapshot()}
	for _, img := range images {
		if img.Guardrail != nil {
			if bundle.GuardrailScores == nil {
				bundle.GuardrailScores = make(map[int]float64)
			}
			bundle.GuardrailScores[img.Index] = img.Guardrail.Score
		}
	}
	return bundle
}

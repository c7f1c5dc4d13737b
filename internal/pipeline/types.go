// Package pipeline implements the multi-stage post generation core: a model
// router with uniform retry/trace semantics, five stage executors, a
// guardrail-gated image-rescue loop, and the orchestrator that wires them
// together. Every stage degrades through the same cascade (retry under the
// active mode, one cross-mode attempt under fast when the active mode is
// quality, then a deterministic network-free default), so an invocation
// always returns a complete response.
package pipeline

import "errors"

// Platform is the target social platform for the post.
type Platform string

const (
	PlatformWeChatMoments Platform = "wechat_moments"
	PlatformRedNote       Platform = "red_note"
)

// Mood is the user-declared emotional state accompanying the note.
type Mood string

const (
	MoodHappy   Mood = "happy"
	MoodTired   Mood = "tired"
	MoodCalm    Mood = "calm"
	MoodSad     Mood = "sad"
	MoodExcited Mood = "excited"
)

// Intent is what the user wants the post to do.
type Intent string

const (
	IntentShareJoy    Intent = "share_joy"
	IntentSeekEmpathy Intent = "seek_empathy"
	IntentRecordLife  Intent = "record_life"
	IntentCelebrate   Intent = "celebrate"
)

// RefineMode selects which part of a prior result a refine request reworks.
type RefineMode string

const (
	RefineImage   RefineMode = "image"
	RefineCaption RefineMode = "caption"
)

// SourceImage is one user-supplied photo, already prepared for upload
// (downscaled, MIME sniffed). Context carries an optional EXIF summary line.
type SourceImage struct {
	Data    []byte `json:"data"`
	MIME    string `json:"mime"`
	Context string `json:"context,omitempty"`
}

// RefineContext links a refine request to its originating create response.
type RefineContext struct {
	// TraceID is required: it correlates the refine with the create call.
	TraceID string `json:"traceId"`
	// VariantID identifies the variant being refined.
	VariantID string `json:"variantId,omitempty"`
	// Mode selects the re-entry point (image or caption).
	Mode RefineMode `json:"mode"`
	// Instruction is the user's free-text change request.
	Instruction string `json:"instruction"`
	// PriorCaption is the caption being revised, when the caller still
	// holds it; the model sees it as the previous turn.
	PriorCaption *Caption `json:"priorCaption,omitempty"`
	// ImageIndex is the target photo for image refinement.
	ImageIndex int `json:"imageIndex"`
}

// Request is the immutable description of one generation attempt.
type Request struct {
	Images          []SourceImage `json:"images"`
	ReferenceImages []SourceImage `json:"referenceImages,omitempty"`
	Note            string        `json:"note"`
	Platform        Platform      `json:"platform"`
	Mood            Mood          `json:"mood"`
	Intent          Intent        `json:"intent"`
	Language        string        `json:"language"`

	// Mode is the explicit performance mode; empty means fast.
	Mode Mode `json:"mode,omitempty"`
	// AdvancedLoop forces quality mode regardless of Mode.
	AdvancedLoop bool `json:"advancedLoop,omitempty"`

	Refine *RefineContext `json:"refine,omitempty"`
}

// ImageNotes is the understanding stage's per-photo analysis.
type ImageNotes struct {
	Index           int      `json:"index"`
	SalientElements []string `json:"salientElements"`
	RiskFlags       []string `json:"riskFlags"`
	Preserve        []string `json:"preserve"`
	Changeable      []string `json:"changeable"`
}

// UnderstandingResult is the understanding stage output.
type UnderstandingResult struct {
	StoryCore string       `json:"storyCore"`
	Intent    Intent       `json:"intent"`
	Platform  Platform     `json:"platform"`
	Mood      Mood         `json:"mood"`
	Tone      string       `json:"tone"`
	Images    []ImageNotes `json:"images"`
}

// DirectorPlan is one per-photo enhancement instruction.
type DirectorPlan struct {
	Index     int      `json:"index"`
	Prompt    string   `json:"prompt"`
	RiskFlags []string `json:"riskFlags,omitempty"`
}

// Caption is the structured caption output.
type Caption struct {
	Title    string   `json:"title"`
	Body     string   `json:"body"`
	Hashtags []string `json:"hashtags"`
}

// EnhancedImage is the enhancement loop's per-photo result. When Enhanced is
// false the original photo is carried through unchanged.
type EnhancedImage struct {
	Index     int               `json:"index"`
	Data      []byte            `json:"data"`
	MIME      string            `json:"mime"`
	Enhanced  bool              `json:"enhanced"`
	Rescued   bool              `json:"rescued,omitempty"`
	Guardrail *GuardrailVerdict `json:"guardrail,omitempty"`
}

// Variant is one complete output bundle.
type Variant struct {
	ID      string          `json:"id"`
	TraceID string          `json:"traceId"`
	Caption Caption         `json:"caption"`
	Images  []EnhancedImage `json:"images"`
	Tone    string          `json:"tone,omitempty"`
}

// DebugBundle carries observability data back to the caller.
type DebugBundle struct {
	Trace           []TraceRecord   `json:"trace"`
	GuardrailScores map[int]float64 `json:"guardrailScores,omitempty"`
}

// Response is the orchestrator's result for one invocation.
type Response struct {
	TraceID       string               `json:"traceId"`
	Understanding *UnderstandingResult `json:"understanding,omitempty"`
	Variants      []Variant            `json:"variants"`
	Reply         string               `json:"reply,omitempty"`
	Debug         DebugBundle          `json:"debug"`
}

// Usage and contract errors. These are the only errors an invocation can
// surface to the caller; stage failures all resolve through fallbacks.
var (
	// ErrMissingTraceID reports a refine request without the trace id from
	// its originating create response.
	ErrMissingTraceID = errors.New("refine request missing trace id")

	// ErrImageIndexOutOfRange reports an image refine targeting a photo the
	// request does not carry.
	ErrImageIndexOutOfRange = errors.New("refine image index out of range")

	// ErrUnknownRefineMode reports a refine mode outside the closed enum.
	ErrUnknownRefineMode = errors.New("unknown refine mode")

	// ErrStageUnsupported reports a (mode, stage) pair with no configured
	// spec, where the caller also defined no fallback path.
	ErrStageUnsupported = errors.New("no stage spec for requested mode")
)

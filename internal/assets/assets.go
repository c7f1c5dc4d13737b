// Package assets provides embedded static assets for the application.
//
// Prompt templates are stored as text files under prompts/ and embedded at
// compile time, keeping prompt wording out of Go source.
package assets

import _ "embed"

// UnderstandingSystemPrompt instructs the model to read the user's note and
// photos and identify the story core, subjects, light sources, and clutter
// to hide, producing one structured entry per image.
//
//go:embed prompts/understanding-system.txt
var UnderstandingSystemPrompt string

// DirectionSystemPrompt instructs the model to produce one enhancement plan
// per image from the understanding notes.
//
//go:embed prompts/direction-system.txt
var DirectionSystemPrompt string

// EnhancementSystemPrompt provides the system-level instructions for photo
// enhancement calls.
//
//go:embed prompts/enhancement-system.txt
var EnhancementSystemPrompt string

// CaptionSystemPrompt instructs the model to produce a structured caption
// (title, body, hashtags) matched to the target platform's register.
//
//go:embed prompts/caption-system.txt
var CaptionSystemPrompt string

// EmpathySystemPrompt instructs the model to write a short supportive reply
// to the user's note in the user's language.
//
//go:embed prompts/empathy-system.txt
var EmpathySystemPrompt string

// GuardrailFastPrompt is the cheap pass/fail evaluator instruction comparing
// an enhanced image against its original.
//
//go:embed prompts/guardrail-fast.txt
var GuardrailFastPrompt string

// GuardrailQAPrompt is the richer quality-tier evaluator instruction with
// per-dimension sub-scores.
//
//go:embed prompts/guardrail-qa.txt
var GuardrailQAPrompt string

// DirectionFallbackTemplate is the deterministic per-image enhancement prompt
// used when the direction stage fails outright. It carries the same subject
// placeholder the model-produced plans use.
//
//go:embed prompts/direction-fallback.txt
var DirectionFallbackTemplate string

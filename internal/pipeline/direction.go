package pipeline

import (
	"context"
	"fmt"
	"strings"

	"github.com/fpang/postpolish/internal/assets"
	"github.com/fpang/postpolish/internal/backend"
)

// subjectToken is the placeholder the direction model (and the fallback
// template) leaves in plan prompts; it is substituted with the photo's most
// salient element before the plan reaches the enhancement stage.
const subjectToken = "{{SUBJECT}}"

type directionResponse struct {
	Plans []DirectorPlan `json:"plans"`
}

// runDirection turns the understanding notes into one enhancement plan per
// photo. A request with zero photos is a no-op. After the cascade resolves,
// every plan prompt (model-produced or fallback) goes through the same
// subject substitution and platform-aware action suffix.
func runDirection(ctx context.Context, r *Router, req *Request, und *UnderstandingResult) []DirectorPlan {
	if len(req.Images) == 0 {
		return nil
	}

	plans := cascade(ctx, r, StageDirection,
		func(ctx context.Context, mode Mode) ([]DirectorPlan, error) {
			resp, err := CallJSON(ctx, r, StageDirection, mode,
				assets.DirectionSystemPrompt,
				[]backend.Part{backend.TextPart(buildDirectionPrompt(req, und))},
				func(d directionResponse) error {
					if len(d.Plans) != len(req.Images) {
						return fmt.Errorf("expected %d plans, got %d", len(req.Images), len(d.Plans))
					}
					return nil
				})
			if err != nil {
				return nil, err
			}
			return resp.Plans, nil
		},
		func() []DirectorPlan { return fallbackPlans(req, und) })

	hasRefs := len(req.ReferenceImages) > 0
	for i := range plans {
		plans[i].Prompt = finishPlanPrompt(plans[i].Prompt, mostSalient(und, plans[i].Index), req.Platform, hasRefs)
	}
	return plans
}

func buildDirectionPrompt(req *Request, und *UnderstandingResult) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "## Story Core\n\n%s\n\n", und.StoryCore)
	fmt.Fprintf(&sb, "Suggested tone: %s. Target platform: %s.\n\n", und.Tone, req.Platform)
	sb.WriteString("## Per-Photo Notes\n\n")

	for _, notes := range und.Images {
		fmt.Fprintf(&sb, "**Photo %d**\n", notes.Index)
		if len(notes.SalientElements) > 0 {
			fmt.Fprintf(&sb, "- Salient: %s\n", strings.Join(notes.SalientElements, "; "))
		}
		if len(notes.RiskFlags) > 0 {
			fmt.Fprintf(&sb, "- Risks: %s\n", strings.Join(notes.RiskFlags, "; "))
		}
		if len(notes.Preserve) > 0 {
			fmt.Fprintf(&sb, "- Preserve: %s\n", strings.Join(notes.Preserve, "; "))
		}
		if len(notes.Changeable) > 0 {
			fmt.Fprintf(&sb, "- May change: %s\n", strings.Join(notes.Changeable, "; "))
		}
		sb.WriteString("\n")
	}

	fmt.Fprintf(&sb, "Produce exactly %d plan(s), one per photo, in photo order. Respond with ONLY the JSON object.", len(req.Images))
	return sb.String()
}

// fallbackPlans builds deterministic per-photo plans from the embedded
// template, carrying the subject token through the same substitution rule as
// model-produced plans.
func fallbackPlans(req *Request, und *UnderstandingResult) []DirectorPlan {
	template := strings.TrimSpace(assets.DirectionFallbackTemplate)
	plans := make([]DirectorPlan, 0, len(req.Images))
	for i := range req.Images {
		plan := DirectorPlan{Index: i, Prompt: template}
		if notes := notesFor(und, i); notes != nil {
			plan.RiskFlags = notes.RiskFlags
		}
		plans = append(plans, plan)
	}
	return plans
}

// finishPlanPrompt substitutes the photo's most salient element for the
// subject token and appends the platform- and reference-aware action suffix.
func finishPlanPrompt(prompt, subject string, platform Platform, hasRefs bool) string {
	if subject == "" {
		subject = "the main subject"
	}
	p := strings.ReplaceAll(prompt, subjectToken, subject)
	p += fmt.Sprintf(" Style the result to feel at home on %s.", platformName(platform))
	if hasRefs {
		p += " Match the general color grading of the attached reference photos."
	}
	return p
}

func platformName(p Platform) string {
	switch p {
	case PlatformRedNote:
		return "RedNote"
	default:
		return "WeChat Moments"
	}
}

func notesFor(und *UnderstandingResult, index int) *ImageNotes {
	for i := range und.Images {
		if und.Images[i].Index == index {
			return &und.Images[i]
		}
	}
	return nil
}

func mostSalient(und *UnderstandingResult, index int) string {
	if notes := notesFor(und, index); notes != nil && len(notes.SalientElements) > 0 {
		return notes.SalientElements[0]
	}
	return ""
}

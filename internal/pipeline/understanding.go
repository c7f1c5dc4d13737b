package pipeline

import (
	"context"
	"fmt"
	"strings"

	"github.com/fpang/postpolish/internal/assets"
	"github.com/fpang/postpolish/internal/backend"
)

// runUnderstanding reads the note and photos and produces the narrative core
// plus per-photo analysis. The cross-mode fast retry drops the photos and
// reasons from the note alone; the deterministic fallback is built straight
// from the request fields. This stage never fails the pipeline.
func runUnderstanding(ctx context.Context, r *Router, req *Request) *UnderstandingResult {
	out := cascade(ctx, r, StageUnderstanding,
		func(ctx context.Context, mode Mode) (UnderstandingResult, error) {
			withImages := mode == r.mode
			return CallJSON(ctx, r, StageUnderstanding, mode,
				assets.UnderstandingSystemPrompt,
				understandingParts(req, withImages),
				func(u UnderstandingResult) error {
					if len(u.Images) != len(req.Images) {
						return fmt.Errorf("expected %d image entries, got %d", len(req.Images), len(u.Images))
					}
					if strings.TrimSpace(u.StoryCore) == "" {
						return fmt.Errorf("empty story core")
					}
					return nil
				})
		},
		func() UnderstandingResult { return fallbackUnderstanding(req) })
	return &out
}

func understandingParts(req *Request, withImages bool) []backend.Part {
	var parts []backend.Part
	if withImages {
		for _, img := range req.Images {
			parts = append(parts, backend.ImagePart(img.Data, img.MIME))
		}
	}
	parts = append(parts, backend.TextPart(buildUnderstandingPrompt(req, withImages)))
	return parts
}

func buildUnderstandingPrompt(req *Request, withImages bool) string {
	var sb strings.Builder

	sb.WriteString("## User Note\n\n")
	if req.Note != "" {
		sb.WriteString(req.Note)
	} else {
		sb.WriteString("(no note provided)")
	}
	sb.WriteString("\n\n## Declared Context\n\n")
	if req.Mood != "" {
		fmt.Fprintf(&sb, "- Mood: %s\n", req.Mood)
	}
	if req.Intent != "" {
		fmt.Fprintf(&sb, "- Intent: %s\n", req.Intent)
	}
	if req.Platform != "" {
		fmt.Fprintf(&sb, "- Target platform: %s\n", req.Platform)
	}
	if req.Language != "" {
		fmt.Fprintf(&sb, "- Language: %s\n", req.Language)
	}

	fmt.Fprintf(&sb, "\n## Photos\n\n%d photo(s) in this request.\n", len(req.Images))
	for i, img := range req.Images {
		if img.Context != "" {
			fmt.Fprintf(&sb, "- Photo %d: %s\n", i, img.Context)
		}
	}
	if !withImages && len(req.Images) > 0 {
		sb.WriteString("\nThe photos themselves are not attached; produce the per-photo entries from the note and the metadata above, leaving visual fields empty where you cannot tell.\n")
	}

	sb.WriteString("\nRespond with ONLY the JSON object described in your instructions.")
	return sb.String()
}

// fallbackUnderstanding builds the deterministic bundle from request fields:
// raw note as story core, mood and intent copied through, empty per-photo
// risk lists.
func fallbackUnderstanding(req *Request) UnderstandingResult {
	u := UnderstandingResult{
		StoryCore: req.Note,
		Intent:    req.Intent,
		Platform:  req.Platform,
		Mood:      req.Mood,
		Tone:      toneForMood(req.Mood),
	}
	if u.Intent == "" {
		u.Intent = IntentRecordLife
	}
	if u.Platform == "" {
		u.Platform = PlatformWeChatMoments
	}
	for i := range req.Images {
		u.Images = append(u.Images, ImageNotes{Index: i})
	}
	return u
}

func toneForMood(mood Mood) string {
	switch mood {
	case MoodHappy, MoodExcited:
		return "upbeat"
	case MoodTired, MoodSad:
		return "gentle"
	default:
		return "warm"
	}
}

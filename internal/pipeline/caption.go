package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/fpang/postpolish/internal/assets"
	"github.com/fpang/postpolish/internal/backend"
)

// MaxHashtags caps the hashtag list on any caption, model-produced or not.
const MaxHashtags = 10

// runCaption produces the structured caption. Total failure yields a
// deterministic caption built from the raw note with an empty hashtag list.
func runCaption(ctx context.Context, r *Router, req *Request, und *UnderstandingResult) Caption {
	caption := cascade(ctx, r, StageCaption,
		func(ctx context.Context, mode Mode) (Caption, error) {
			return CallJSON(ctx, r, StageCaption, mode,
				assets.CaptionSystemPrompt,
				[]backend.Part{backend.TextPart(buildCaptionPrompt(req, und, ""))},
				checkCaption)
		},
		func() Caption { return fallbackCaption(req) })
	return trimHashtags(caption)
}

// refineCaption regenerates the caption under a user instruction, passing the
// prior caption (when the caller still holds it) and the instruction as a
// follow-up turn.
func refineCaption(ctx context.Context, r *Router, req *Request) Caption {
	caption := cascade(ctx, r, StageCaption,
		func(ctx context.Context, mode Mode) (Caption, error) {
			return CallJSON(ctx, r, StageCaption, mode,
				assets.CaptionSystemPrompt,
				[]backend.Part{backend.TextPart(buildCaptionPrompt(req, nil, req.Refine.Instruction))},
				checkCaption)
		},
		func() Caption { return fallbackCaption(req) })
	return trimHashtags(caption)
}

func checkCaption(c Caption) error {
	if strings.TrimSpace(c.Body) == "" {
		return fmt.Errorf("empty caption body")
	}
	return nil
}

func buildCaptionPrompt(req *Request, und *UnderstandingResult, instruction string) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "## Caption Request\n\nTarget platform: %s. Language: %s.\n\n", req.Platform, langOrDefault(req.Language))
	fmt.Fprintf(&sb, "### User Note\n\n%s\n\n", req.Note)

	if und != nil {
		fmt.Fprintf(&sb, "### Story Core\n\n%s\n\n", und.StoryCore)
		fmt.Fprintf(&sb, "Mood: %s. Intent: %s. Tone: %s.\n\n", und.Mood, und.Intent, und.Tone)
	}
	if instruction != "" {
		if req.Refine != nil && req.Refine.PriorCaption != nil {
			prior, err := json.Marshal(req.Refine.PriorCaption)
			if err == nil {
				fmt.Fprintf(&sb, "### Previous Caption\n\n%s\n\n", prior)
			}
		}
		fmt.Fprintf(&sb, "### Revision Instruction\n\nThe user wants the previous caption changed: %s\n\n", instruction)
	}

	sb.WriteString("Respond with ONLY the JSON object described in your instructions.")
	return sb.String()
}

// fallbackCaption derives a caption directly from the note, no backend.
func fallbackCaption(req *Request) Caption {
	title := firstLine(req.Note, 24)
	if title == "" {
		if isChinese(req.Language) {
			title = "今日记录"
		} else {
			title = "Today's note"
		}
	}
	return Caption{Title: title, Body: req.Note, Hashtags: []string{}}
}

func trimHashtags(c Caption) Caption {
	if len(c.Hashtags) > MaxHashtags {
		c.Hashtags = c.Hashtags[:MaxHashtags]
	}
	return c
}

// firstLine returns the first line of s truncated to maxRunes runes.
func firstLine(s string, maxRunes int) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	runes := []rune(s)
	if len(runes) > maxRunes {
		return string(runes[:maxRunes])
	}
	return s
}

func langOrDefault(lang string) string {
	if lang == "" {
		return "zh"
	}
	return lang
}

func isChinese(lang string) bool {
	return lang == "" || strings.HasPrefix(strings.ToLower(lang), "zh")
}

package pipeline

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/fpang/postpolish/internal/assets"
	"github.com/fpang/postpolish/internal/backend"
)

// Verdict is the closed guardrail outcome enum. The quality evaluator may
// additionally emit NEEDS_RECOMPOSE or NEEDS_CLEANUP; both are mapped down to
// TOO_WEAK_CHANGE before a verdict leaves this stage, keeping the two
// evaluator tiers consistent.
type Verdict string

const (
	VerdictOK                Verdict = "OK"
	VerdictColorCast         Verdict = "COLOR_CAST"
	VerdictArtifacts         Verdict = "ARTIFACTS"
	VerdictTooWeakChange     Verdict = "TOO_WEAK_CHANGE"
	VerdictWorseThanOriginal Verdict = "WORSE_THAN_ORIGINAL"

	verdictNeedsRecompose Verdict = "NEEDS_RECOMPOSE"
	verdictNeedsCleanup   Verdict = "NEEDS_CLEANUP"
)

// GuardrailVerdict is the accept/reject judgment on one enhanced photo versus
// its original. SubScores is populated only by the quality-tier evaluator.
type GuardrailVerdict struct {
	Pass      bool               `json:"pass"`
	Score     float64            `json:"score"`
	Verdict   Verdict            `json:"verdict"`
	Reasons   []string           `json:"reasons,omitempty"`
	Revisions []string           `json:"revisions,omitempty"`
	SubScores map[string]float64 `json:"subScores,omitempty"`
}

// autoPass is the permissive default when no evaluator is configured or every
// evaluator call fails: skipped check, not a failure.
func autoPass() GuardrailVerdict {
	return GuardrailVerdict{Pass: true, Score: 0, Verdict: VerdictOK}
}

// evaluateGuardrail compares original and enhanced. It picks the evaluator
// configured for the active mode, falling back to the other mode's evaluator
// when the active cell is empty; with neither configured the check is skipped
// as an automatic pass. Evaluator call failures follow the standard cascade
// with an automatic pass as the final tier.
func evaluateGuardrail(ctx context.Context, r *Router, original SourceImage, enhanced *backend.ImageResult) GuardrailVerdict {
	mode := r.mode
	if _, ok := r.Spec(mode, StageGuardrail); !ok {
		mode = otherMode(mode)
		if _, ok := r.Spec(mode, StageGuardrail); !ok {
			log.Debug().Msg("No guardrail evaluator configured, automatic pass")
			return autoPass()
		}
	}

	parts := []backend.Part{
		backend.ImagePart(original.Data, original.MIME),
		backend.ImagePart(enhanced.Data, enhanced.MIME),
		backend.TextPart("The first photo is the ORIGINAL, the second is the ENHANCED version. Judge the enhanced photo and respond with ONLY the JSON object."),
	}

	v, err := CallJSON[GuardrailVerdict](ctx, r, StageGuardrail, mode, guardrailSystem(mode), parts, nil)
	if err == nil {
		return normalizeVerdict(v)
	}
	log.Warn().Err(err).Str("mode", string(mode)).Msg("Guardrail evaluator exhausted retries")

	if mode == ModeQuality {
		if _, ok := r.Spec(ModeFast, StageGuardrail); ok {
			v, err = CallJSON[GuardrailVerdict](ctx, r, StageGuardrail, ModeFast, guardrailSystem(ModeFast), parts, nil)
			if err == nil {
				return normalizeVerdict(v)
			}
			log.Warn().Err(err).Msg("Fast guardrail retry failed")
		}
	}

	log.Warn().Msg("Guardrail unavailable, automatic pass")
	return autoPass()
}

func guardrailSystem(mode Mode) string {
	if mode == ModeQuality {
		return assets.GuardrailQAPrompt
	}
	return assets.GuardrailFastPrompt
}

func normalizeVerdict(v GuardrailVerdict) GuardrailVerdict {
	switch v.Verdict {
	case verdictNeedsRecompose, verdictNeedsCleanup:
		v.Verdict = VerdictTooWeakChange
	case "":
		if v.Pass {
			v.Verdict = VerdictOK
		} else {
			v.Verdict = VerdictTooWeakChange
		}
	}
	return v
}

func otherMode(m Mode) Mode {
	if m == ModeFast {
		return ModeQuality
	}
	return ModeFast
}

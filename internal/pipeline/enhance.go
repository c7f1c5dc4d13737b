package pipeline

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/fpang/postpolish/internal/assets"
)

// rescueDirective is appended to a plan prompt for the single rescue attempt
// after a failed guardrail check.
const rescueDirective = " Strictly: eliminate all floating artifacts, deepen shadows, keep a single light source only, and preserve the original composition."

// runEnhancementLoop enhances each photo that has both source data and a
// plan. Photos are processed independently; one photo's failure never aborts
// the loop for the others. A photo whose enhancement fails outright carries
// its original bytes through unchanged.
func runEnhancementLoop(ctx context.Context, r *Router, req *Request, plans []DirectorPlan) []EnhancedImage {
	byIndex := make(map[int]DirectorPlan, len(plans))
	for _, p := range plans {
		byIndex[p.Index] = p
	}

	results := make([]EnhancedImage, 0, len(req.Images))
	for i, src := range req.Images {
		plan, ok := byIndex[i]
		if !ok || len(src.Data) == 0 {
			results = append(results, EnhancedImage{Index: i, Data: src.Data, MIME: src.MIME})
			continue
		}
		results = append(results, enhanceOne(ctx, r, req, i, src, plan))
	}
	return results
}

// enhanceOne runs the generate → guardrail → rescue chain for one photo.
//
// Generation retries under the active mode, then once under fast when the
// active mode is quality; total failure keeps the original photo. A failed
// guardrail verdict triggers exactly one rescue regeneration, forced to
// quality (never downgrading). A successful rescue replaces the result
// unconditionally; the rescue output is never re-validated.
func enhanceOne(ctx context.Context, r *Router, req *Request, index int, src SourceImage, plan DirectorPlan) EnhancedImage {
	out := EnhancedImage{Index: index, Data: src.Data, MIME: src.MIME}
	logger := log.With().Int("image", index).Logger()

	gen, err := r.CallImage(ctx, StageEnhance, r.mode, false, assets.EnhancementSystemPrompt, plan.Prompt, src, req.ReferenceImages)
	if err != nil && r.mode == ModeQuality {
		logger.Warn().Err(err).Msg("Enhancement exhausted quality retries, retrying once under fast")
		gen, err = r.CallImage(ctx, StageEnhance, ModeFast, false, assets.EnhancementSystemPrompt, plan.Prompt, src, req.ReferenceImages)
	}
	if err != nil {
		logger.Warn().Err(err).Msg("Enhancement failed, keeping original photo")
		return out
	}

	out.Data = gen.Data
	out.MIME = gen.MIME
	out.Enhanced = true

	verdict := evaluateGuardrail(ctx, r, src, gen)
	out.Guardrail = &verdict
	if verdict.Pass {
		return out
	}

	logger.Info().
		Str("verdict", string(verdict.Verdict)).
		Float64("score", verdict.Score).
		Msg("Guardrail rejected enhancement, attempting rescue")

	rescue, rerr := r.CallImage(ctx, StageEnhance, ModeQuality, true, assets.EnhancementSystemPrompt, plan.Prompt+rescueDirective, src, req.ReferenceImages)
	if rerr != nil {
		logger.Warn().Err(rerr).Msg("Rescue failed, keeping guardrail-flagged result")
		return out
	}

	out.Data = rescue.Data
	out.MIME = rescue.MIME
	out.Rescued = true
	logger.Info().Int("result_bytes", len(rescue.Data)).Msg("Rescue result accepted")
	return out
}

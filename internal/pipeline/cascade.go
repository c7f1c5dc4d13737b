package pipeline

import (
	"context"

	"github.com/rs/zerolog/log"
)

// cascade is the three-tier fallback every stage follows: run under the
// invocation's active mode (the router's retry budget applies), then one
// attempt under fast when the active mode is quality, then the deterministic
// network-free default. fast has no stricter neighbor, so exhaustion under
// fast goes straight to the default.
func cascade[T any](ctx context.Context, r *Router, stage Stage, run func(context.Context, Mode) (T, error), fallback func() T) T {
	out, err := run(ctx, r.mode)
	if err == nil {
		return out
	}
	log.Warn().
		Err(err).
		Str("stage", string(stage)).
		Str("mode", string(r.mode)).
		Msg("Stage exhausted retries under active mode")

	if r.mode == ModeQuality {
		out, err = run(ctx, ModeFast)
		if err == nil {
			log.Info().Str("stage", string(stage)).Msg("Cross-mode fast retry succeeded")
			return out
		}
		log.Warn().Err(err).Str("stage", string(stage)).Msg("Cross-mode fast retry failed")
	}

	log.Warn().Str("stage", string(stage)).Msg("Substituting deterministic fallback result")
	return fallback()
}

package pipeline

import (
	"context"
	"fmt"
	"strings"

	"github.com/fpang/postpolish/internal/assets"
	"github.com/fpang/postpolish/internal/backend"
)

// runEmpathy produces a short supportive response to the user's note. Total
// failure yields a templated reply built from the raw text, localized by a
// fixed language switch.
func runEmpathy(ctx context.Context, r *Router, req *Request) string {
	return cascade(ctx, r, StageEmpathy,
		func(ctx context.Context, mode Mode) (string, error) {
			return r.CallText(ctx, StageEmpathy, mode,
				assets.EmpathySystemPrompt,
				[]backend.Part{backend.TextPart(buildEmpathyPrompt(req))})
		},
		func() string { return fallbackReply(req) })
}

func buildEmpathyPrompt(req *Request) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Reply in language: %s.\n", langOrDefault(req.Language))
	if req.Mood != "" {
		fmt.Fprintf(&sb, "The user says they feel %s.\n", req.Mood)
	}
	fmt.Fprintf(&sb, "\nTheir note:\n%s\n", req.Note)
	return sb.String()
}

func fallbackReply(req *Request) string {
	note := firstLine(req.Note, 30)
	if isChinese(req.Language) {
		if note != "" {
			return fmt.Sprintf("谢谢你愿意分享「%s」。不管今天过得怎么样，你的感受都值得被认真对待。", note)
		}
		return "谢谢你愿意分享这些。不管今天过得怎么样，你的感受都值得被认真对待。"
	}
	if note != "" {
		return fmt.Sprintf("Thank you for sharing %q. However today went, what you're feeling matters.", note)
	}
	return "Thank you for sharing this. However today went, what you're feeling matters."
}

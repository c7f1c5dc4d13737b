package pipeline

import (
	"context"
	"fmt"
	"sync"

	"github.com/fpang/postpolish/internal/assets"
	"github.com/fpang/postpolish/internal/backend"
)

// fakeGen is a scripted backend.Generator. Behavior is keyed off the system
// prompt, which identifies the stage, so a single fake serves a whole
// orchestrator invocation.
type fakeGen struct {
	mu         sync.Mutex
	textCalls  []backend.Request
	imageCalls []backend.Request

	textFn  func(stage Stage, req backend.Request) (string, error)
	imageFn func(req backend.Request) (*backend.ImageResult, error)
}

func (f *fakeGen) GenerateText(ctx context.Context, req backend.Request) (string, error) {
	f.mu.Lock()
	f.textCalls = append(f.textCalls, req)
	f.mu.Unlock()
	if f.textFn == nil {
		return "", fmt.Errorf("unexpected text call")
	}
	return f.textFn(stageOf(req), req)
}

func (f *fakeGen) GenerateImage(ctx context.Context, req backend.Request) (*backend.ImageResult, error) {
	f.mu.Lock()
	f.imageCalls = append(f.imageCalls, req)
	f.mu.Unlock()
	if f.imageFn == nil {
		return nil, fmt.Errorf("unexpected image call")
	}
	return f.imageFn(req)
}

func (f *fakeGen) totalCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.textCalls) + len(f.imageCalls)
}

func (f *fakeGen) textCallsFor(stage Stage) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.textCalls {
		if stageOf(c) == stage {
			n++
		}
	}
	return n
}

// stageOf maps a backend request back to the stage that issued it via its
// system prompt.
func stageOf(req backend.Request) Stage {
	switch req.System {
	case assets.UnderstandingSystemPrompt:
		return StageUnderstanding
	case assets.DirectionSystemPrompt:
		return StageDirection
	case assets.EnhancementSystemPrompt:
		return StageEnhance
	case assets.CaptionSystemPrompt:
		return StageCaption
	case assets.EmpathySystemPrompt:
		return StageEmpathy
	case assets.GuardrailFastPrompt, assets.GuardrailQAPrompt:
		return StageGuardrail
	}
	return Stage("unknown")
}

func understandingJSON(n int) string {
	images := ""
	for i := 0; i < n; i++ {
		if i > 0 {
			images += ","
		}
		images += fmt.Sprintf(`{"index":%d,"salientElements":["subject %d"],"riskFlags":[],"preserve":["faces"],"changeable":["background"]}`, i, i)
	}
	return fmt.Sprintf(`{"storyCore":"a quiet afternoon","intent":"record_life","platform":"wechat_moments","mood":"calm","tone":"warm","images":[%s]}`, images)
}

func directionJSON(n int) string {
	plans := ""
	for i := 0; i < n; i++ {
		if i > 0 {
			plans += ","
		}
		plans += fmt.Sprintf(`{"index":%d,"prompt":"Brighten {{SUBJECT}} and soften the light."}`, i)
	}
	return fmt.Sprintf(`{"plans":[%s]}`, plans)
}

const captionJSON = `{"title":"Quiet afternoon","body":"Coffee and a long walk.","hashtags":["#daily"]}`

const guardrailPassJSON = `{"pass":true,"score":0.91,"verdict":"OK"}`

// happyGen scripts every stage to succeed on the first attempt for a request
// carrying nImages photos.
func happyGen(nImages int) *fakeGen {
	return &fakeGen{
		textFn: func(stage Stage, req backend.Request) (string, error) {
			switch stage {
			case StageUnderstanding:
				return understandingJSON(nImages), nil
			case StageDirection:
				return directionJSON(nImages), nil
			case StageCaption:
				return captionJSON, nil
			case StageEmpathy:
				return "That sounds like a good day. Be kind to yourself.", nil
			case StageGuardrail:
				return guardrailPassJSON, nil
			}
			return "", fmt.Errorf("unknown stage")
		},
		imageFn: func(req backend.Request) (*backend.ImageResult, error) {
			return &backend.ImageResult{Data: []byte("enhanced-bytes"), MIME: "image/png"}, nil
		},
	}
}

func testRequest(nImages int) *Request {
	req := &Request{
		Note:     "long day, but the coffee was great",
		Platform: PlatformWeChatMoments,
		Mood:     MoodTired,
		Language: "en",
	}
	for i := 0; i < nImages; i++ {
		req.Images = append(req.Images, SourceImage{
			Data: []byte(fmt.Sprintf("photo-%d", i)),
			MIME: "image/jpeg",
		})
	}
	return req
}

func countStage(records []TraceRecord, stage Stage) int {
	n := 0
	for _, rec := range records {
		if rec.Stage == stage {
			n++
		}
	}
	return n
}

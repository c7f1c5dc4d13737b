package pipeline

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/fpang/postpolish/internal/backend"
)

func TestSpecLookup(t *testing.T) {
	r := newRouter(&fakeGen{}, DefaultSpecs(), ModeFast, newTraceLog("trace-test"))

	spec, ok := r.Spec(ModeFast, StageCaption)
	if !ok {
		t.Fatal("fast caption spec missing")
	}
	if spec.Model == "" || spec.Retries < 1 {
		t.Errorf("fast caption spec = %+v", spec)
	}

	if _, ok := r.Spec(Mode("turbo"), StageCaption); ok {
		t.Error("lookup succeeded for an unknown mode")
	}
	if _, ok := r.Spec(ModeFast, Stage("publish")); ok {
		t.Error("lookup succeeded for an unknown stage")
	}
}

func TestExecuteUnsupportedStage(t *testing.T) {
	specs := SpecTable{ModeFast: {}}
	r := newRouter(&fakeGen{}, specs, ModeFast, newTraceLog("trace-test"))

	_, err := r.CallText(context.Background(), StageCaption, ModeFast, "", nil)
	if !errors.Is(err, ErrStageUnsupported) {
		t.Fatalf("err = %v, want ErrStageUnsupported", err)
	}
}

func TestExecuteRetriesWithinBudget(t *testing.T) {
	calls := 0
	gen := &fakeGen{textFn: func(stage Stage, req backend.Request) (string, error) {
		calls++
		if calls < 3 {
			return "", fmt.Errorf("transient")
		}
		return "steady", nil
	}}

	specs := SpecTable{ModeFast: {StageEmpathy: {Model: "m", Retries: 3}}}
	trace := newTraceLog("trace-test")
	r := newRouter(gen, specs, ModeFast, trace)

	out, err := r.CallText(context.Background(), StageEmpathy, ModeFast, "", []backend.Part{backend.TextPart("hi")})
	if err != nil {
		t.Fatalf("CallText: %v", err)
	}
	if out != "steady" {
		t.Errorf("out = %q", out)
	}

	records := trace.snapshot()
	if len(records) != 3 {
		t.Fatalf("got %d records, want 3", len(records))
	}
	if records[0].OK || records[1].OK || !records[2].OK {
		t.Errorf("record OK flags = %v %v %v, want false false true", records[0].OK, records[1].OK, records[2].OK)
	}
	if records[2].Attempt != 3 {
		t.Errorf("final attempt = %d, want 3", records[2].Attempt)
	}
}

func TestExecuteCrossModeSingleAttempt(t *testing.T) {
	calls := 0
	gen := &fakeGen{textFn: func(stage Stage, req backend.Request) (string, error) {
		calls++
		return "", fmt.Errorf("down")
	}}

	specs := SpecTable{
		ModeQuality: {StageEmpathy: {Model: "q", Retries: 3}},
		ModeFast:    {StageEmpathy: {Model: "f", Retries: 3}},
	}
	trace := newTraceLog("trace-test")
	r := newRouter(gen, specs, ModeQuality, trace)

	// A fast call issued while quality is active gets one attempt, not the
	// fast cell's budget of 3.
	if _, err := r.CallText(context.Background(), StageEmpathy, ModeFast, "", nil); err == nil {
		t.Fatal("expected error")
	}
	if calls != 1 {
		t.Errorf("got %d calls, want 1", calls)
	}
}

func TestExecuteWhitespaceTextIsFailure(t *testing.T) {
	gen := &fakeGen{textFn: func(stage Stage, req backend.Request) (string, error) {
		return "   \n\t ", nil
	}}
	specs := SpecTable{ModeFast: {StageEmpathy: {Model: "m", Retries: 2}}}
	trace := newTraceLog("trace-test")
	r := newRouter(gen, specs, ModeFast, trace)

	if _, err := r.CallText(context.Background(), StageEmpathy, ModeFast, "", nil); err == nil {
		t.Fatal("whitespace-only response accepted")
	}
	for _, rec := range trace.snapshot() {
		if rec.OK {
			t.Errorf("record %+v marked OK for whitespace output", rec)
		}
	}
}

func TestCallJSONValidatorFailureRetries(t *testing.T) {
	calls := 0
	gen := &fakeGen{textFn: func(stage Stage, req backend.Request) (string, error) {
		calls++
		return `{"title":"t","body":"","hashtags":[]}`, nil
	}}
	specs := SpecTable{ModeFast: {StageCaption: {Model: "m", Retries: 2}}}
	r := newRouter(gen, specs, ModeFast, newTraceLog("trace-test"))

	_, err := CallJSON(context.Background(), r, StageCaption, ModeFast, "", nil, checkCaption)
	if err == nil {
		t.Fatal("validator rejection should surface after exhaustion")
	}
	if calls != 2 {
		t.Errorf("got %d calls, want the full budget of 2", calls)
	}
}

func TestCallImagePartOrder(t *testing.T) {
	var got backend.Request
	gen := &fakeGen{imageFn: func(req backend.Request) (*backend.ImageResult, error) {
		got = req
		return &backend.ImageResult{Data: []byte("x"), MIME: "image/png"}, nil
	}}
	specs := SpecTable{ModeFast: {StageEnhance: {Model: "img", Retries: 1}}}
	r := newRouter(gen, specs, ModeFast, newTraceLog("trace-test"))

	base := SourceImage{Data: []byte("base"), MIME: "image/jpeg"}
	refs := []SourceImage{{Data: []byte("ref"), MIME: "image/png"}}
	if _, err := r.CallImage(context.Background(), StageEnhance, ModeFast, false, "sys", "do it", base, refs); err != nil {
		t.Fatalf("CallImage: %v", err)
	}

	if len(got.Parts) != 3 {
		t.Fatalf("got %d parts, want base + ref + text", len(got.Parts))
	}
	if string(got.Parts[0].Data) != "base" || string(got.Parts[1].Data) != "ref" {
		t.Error("image parts out of order")
	}
	if got.Parts[2].Text != "do it" {
		t.Errorf("prompt part = %q", got.Parts[2].Text)
	}
}

func TestTraceLogSnapshotIsCopy(t *testing.T) {
	trace := newTraceLog("trace-test")
	trace.append(TraceRecord{Stage: StageCaption, Attempt: 1, OK: true})

	snap := trace.snapshot()
	snap[0].OK = false

	if got := trace.snapshot(); !got[0].OK {
		t.Error("mutating a snapshot leaked into the log")
	}
}

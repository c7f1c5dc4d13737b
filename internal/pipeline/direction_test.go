package pipeline

import (
	"strings"
	"testing"
)

func TestFinishPlanPrompt(t *testing.T) {
	got := finishPlanPrompt("Brighten {{SUBJECT}} gently.", "the latte", PlatformRedNote, false)
	if !strings.Contains(got, "Brighten the latte gently.") {
		t.Errorf("prompt = %q, subject not substituted", got)
	}
	if !strings.Contains(got, "RedNote") {
		t.Errorf("prompt = %q, missing platform suffix", got)
	}
	if strings.Contains(got, "reference photos") {
		t.Errorf("prompt = %q, reference suffix present without references", got)
	}

	got = finishPlanPrompt("Fix {{SUBJECT}}.", "", PlatformWeChatMoments, true)
	if !strings.Contains(got, "Fix the main subject.") {
		t.Errorf("prompt = %q, empty subject should fall back to a generic token", got)
	}
	if !strings.Contains(got, "WeChat Moments") || !strings.Contains(got, "reference photos") {
		t.Errorf("prompt = %q, missing platform or reference suffix", got)
	}
}

func TestFallbackPlansCarryRiskFlags(t *testing.T) {
	req := testRequest(2)
	und := &UnderstandingResult{
		Images: []ImageNotes{
			{Index: 0, RiskFlags: []string{"face visible"}},
			{Index: 1},
		},
	}

	plans := fallbackPlans(req, und)
	if len(plans) != 2 {
		t.Fatalf("got %d plans, want 2", len(plans))
	}
	if len(plans[0].RiskFlags) != 1 || plans[0].RiskFlags[0] != "face visible" {
		t.Errorf("plan 0 risk flags = %v", plans[0].RiskFlags)
	}
	for i, p := range plans {
		if p.Index != i {
			t.Errorf("plan %d has index %d", i, p.Index)
		}
		if strings.TrimSpace(p.Prompt) == "" {
			t.Errorf("plan %d has an empty prompt", i)
		}
	}
}

func TestMostSalient(t *testing.T) {
	und := &UnderstandingResult{
		Images: []ImageNotes{{Index: 1, SalientElements: []string{"sunset", "pier"}}},
	}
	if got := mostSalient(und, 1); got != "sunset" {
		t.Errorf("mostSalient = %q", got)
	}
	if got := mostSalient(und, 0); got != "" {
		t.Errorf("mostSalient for missing notes = %q, want empty", got)
	}
}

func TestFallbackUnderstandingDefaults(t *testing.T) {
	req := testRequest(2)
	req.Intent = ""
	req.Platform = ""

	u := fallbackUnderstanding(req)
	if u.StoryCore != req.Note {
		t.Errorf("story core = %q, want the raw note", u.StoryCore)
	}
	if u.Intent != IntentRecordLife {
		t.Errorf("intent = %q, want record_life default", u.Intent)
	}
	if u.Platform != PlatformWeChatMoments {
		t.Errorf("platform = %q, want wechat_moments default", u.Platform)
	}
	if len(u.Images) != 2 {
		t.Errorf("got %d image entries, want 2", len(u.Images))
	}
	if u.Tone != "gentle" {
		t.Errorf("tone = %q, want gentle for a tired mood", u.Tone)
	}
}

func TestCrossModeUnderstandingDropsPhotos(t *testing.T) {
	req := testRequest(1)
	parts := understandingParts(req, false)
	for _, p := range parts {
		if len(p.Data) > 0 {
			t.Fatal("cross-mode retry must not attach photo bytes")
		}
	}
	if !strings.Contains(parts[len(parts)-1].Text, "not attached") {
		t.Error("prompt missing the photos-not-attached note")
	}

	withPhotos := understandingParts(req, true)
	if len(withPhotos) != 2 {
		t.Errorf("got %d parts with photos, want image + text", len(withPhotos))
	}
}

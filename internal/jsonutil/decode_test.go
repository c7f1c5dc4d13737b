package jsonutil

import "testing"

type payload struct {
	Title string   `json:"title"`
	Tags  []string `json:"tags"`
}

func TestDecodePlainJSON(t *testing.T) {
	got, err := Decode[payload](`{"title":"hello","tags":["a","b"]}`)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if got.Title != "hello" || len(got.Tags) != 2 {
		t.Errorf("got %+v", got)
	}
}

func TestDecodeFencedJSON(t *testing.T) {
	raw := "```json\n{\"title\":\"fenced\"}\n```"
	got, err := Decode[payload](raw)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if got.Title != "fenced" {
		t.Errorf("got %+v", got)
	}
}

func TestDecodeWithSurroundingProse(t *testing.T) {
	raw := "Sure! Here is the result:\n{\"title\":\"prose\"}\nHope that helps."
	got, err := Decode[payload](raw)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if got.Title != "prose" {
		t.Errorf("got %+v", got)
	}
}

func TestDecodeArray(t *testing.T) {
	got, err := Decode[[]int]("the numbers are [1, 2, 3] as requested")
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if len(got) != 3 || got[2] != 3 {
		t.Errorf("got %v", got)
	}
}

func TestDecodeNoJSON(t *testing.T) {
	if _, err := Decode[payload]("no structured content here"); err == nil {
		t.Fatal("expected error for text without JSON")
	}
}

func TestDecodeInvalidJSON(t *testing.T) {
	if _, err := Decode[payload](`{"title": unquoted}`); err == nil {
		t.Fatal("expected error for malformed JSON")
	}
}

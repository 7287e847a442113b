package classify

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/desertthunder/prism/internal/models"
	"github.com/desertthunder/prism/internal/services"
	"github.com/desertthunder/prism/internal/shared"
)

// fakeGenerator returns canned responses in order and records prompts.
type fakeGenerator struct {
	responses []string
	err       error
	prompts   []string
	schemas   []map[string]any
}

func (f *fakeGenerator) GenerateJSON(ctx context.Context, prompt string, schema map[string]any) (string, error) {
	f.prompts = append(f.prompts, prompt)
	f.schemas = append(f.schemas, schema)
	if f.err != nil {
		return "", f.err
	}
	if len(f.responses) == 0 {
		return "", errors.New("no response queued")
	}
	r := f.responses[0]
	f.responses = f.responses[1:]
	return r, nil
}

func (f *fakeGenerator) Model() string { return "test-model" }

var video = services.VideoMetadata{ID: "dQw4w9WgXcQ", Title: "Rick Astley - Never Gonna Give You Up", Description: "Official video"}

func TestGemini(t *testing.T) {
	ctx := context.Background()

	t.Run("Classify parses fenced JSON", func(t *testing.T) {
		gen := &fakeGenerator{responses: []string{"```json\n{\"genre\":\"pop\",\"fidelity\":85,\"remarks\":\"Synth pop.\",\"artist\":\" Rick Astley \",\"track\":\"Never Gonna Give You Up\"}\n```"}}
		res, err := NewGemini(gen).Classify(ctx, video)
		if err != nil {
			t.Fatalf("Classify failed: %v", err)
		}
		if res.Genre != "Pop" || res.Fidelity != 85 || res.Artist != "Rick Astley" || res.Model != "test-model" {
			t.Errorf("unexpected result %+v", res)
		}
		if !strings.Contains(gen.prompts[0], "Title 'Rick Astley - Never Gonna Give You Up'") ||
			!strings.Contains(gen.prompts[0], "R&B & soul") {
			t.Errorf("prompt missing details: %s", gen.prompts[0])
		}
		if gen.schemas[0] == nil {
			t.Error("expected a response schema")
		}
	})

	t.Run("Classify maps unknown genres", func(t *testing.T) {
		gen := &fakeGenerator{responses: []string{`{"genre":"Synthwave","fidelity":40,"remarks":"","artist":"","track":""}`}}
		res, err := NewGemini(gen).Classify(ctx, video)
		if err != nil {
			t.Fatalf("Classify failed: %v", err)
		}
		if res.Genre != models.GenreUnknown {
			t.Errorf("expected Unknown, got %s", res.Genre)
		}
	})

	t.Run("IdentifyTrack", func(t *testing.T) {
		gen := &fakeGenerator{responses: []string{"```\n{\"artist\":\"Rick Astley\",\"track\":\"Never Gonna Give You Up\"}\n```"}}
		artist, track, err := NewGemini(gen).IdentifyTrack(ctx, video.ID, video.Title)
		if err != nil {
			t.Fatalf("IdentifyTrack failed: %v", err)
		}
		if artist != "Rick Astley" || track != "Never Gonna Give You Up" {
			t.Errorf("unexpected answer %q / %q", artist, track)
		}
	})

	t.Run("ExtractMentions accepts both shapes", func(t *testing.T) {
		gen := &fakeGenerator{responses: []string{
			`{"mentions":[{"artist":"Björk","track":"Hyperballad","confidence":0.9},{"artist":"Björk","track":"","confidence":0.5}]}`,
			`[{"artist":"Massive Attack","track":"Teardrop","confidence":0.8,"evidence":"Teardrop by Massive Attack"},{"artist":"Portishead","track":"Roads"}]`,
		}}
		g := NewGemini(gen)

		first, err := g.ExtractMentions(ctx, "some text", 0)
		if err != nil {
			t.Fatalf("ExtractMentions failed: %v", err)
		}
		if len(first) != 1 || first[0].Track != "Hyperballad" {
			t.Errorf("expected the artist-only mention dropped, got %+v", first)
		}
		if strings.Contains(gen.prompts[0], "Return at most") {
			t.Error("unlimited request should not carry a limit")
		}

		second, err := g.ExtractMentions(ctx, "more text", 1)
		if err != nil {
			t.Fatalf("ExtractMentions failed: %v", err)
		}
		if len(second) != 1 || second[0].Evidence == "" {
			t.Errorf("expected one mention with evidence, got %+v", second)
		}
		if !strings.Contains(gen.prompts[1], "Return at most 1 mentions.") || !strings.Contains(gen.prompts[1], "TEXT:\nmore text") {
			t.Errorf("unexpected prompt %q", gen.prompts[1])
		}
	})

	t.Run("malformed JSON is an error", func(t *testing.T) {
		gen := &fakeGenerator{responses: []string{"I think it's jazz"}}
		if _, err := NewGemini(gen).Classify(ctx, video); err == nil {
			t.Error("expected parse error")
		}
	})

	t.Run("optional capabilities", func(t *testing.T) {
		var c Classifier = NewGemini(&fakeGenerator{})
		if _, ok := c.(TrackIdentifier); !ok {
			t.Error("Gemini should identify tracks")
		}
		if _, ok := c.(MentionExtractor); !ok {
			t.Error("Gemini should extract mentions")
		}
		if _, ok := Classifier(Unknown{}).(MentionExtractor); ok {
			t.Error("Unknown should not extract mentions")
		}
	})
}

func TestClassifyOrUnknown(t *testing.T) {
	ctx := context.Background()

	t.Run("failure falls back to Unknown", func(t *testing.T) {
		gen := &fakeGenerator{err: errors.New("gemini API error: HTTP 500")}
		res := ClassifyOrUnknown(ctx, NewGemini(gen), video)
		if res.Genre != models.GenreUnknown || res.Fidelity != 0 {
			t.Errorf("unexpected fallback %+v", res)
		}
		if !strings.Contains(res.Remarks, "HTTP 500") || res.Model != "test-model" {
			t.Errorf("remarks should describe the failure: %+v", res)
		}
	})

	t.Run("Unknown classifier", func(t *testing.T) {
		res := ClassifyOrUnknown(ctx, Unknown{}, video)
		if res.Genre != models.GenreUnknown || res.Model != "" {
			t.Errorf("unexpected result %+v", res)
		}
	})

	t.Run("fidelity clamped", func(t *testing.T) {
		gen := &fakeGenerator{responses: []string{`{"genre":"Jazz","fidelity":140}`}}
		if res := ClassifyOrUnknown(ctx, NewGemini(gen), video); res.Fidelity != 100 || res.Genre != "Jazz" {
			t.Errorf("unexpected result %+v", res)
		}
	})
}

func TestNew(t *testing.T) {
	t.Setenv("PRISM_TEST_GEMINI_KEY", "")
	if _, ok := New(shared.GeminiConfig{APIKeyEnv: "PRISM_TEST_GEMINI_KEY"}, nil).(Unknown); !ok {
		t.Error("expected Unknown without a key")
	}

	t.Setenv("PRISM_TEST_GEMINI_KEY", "secret")
	c := New(shared.GeminiConfig{APIKeyEnv: "PRISM_TEST_GEMINI_KEY", Model: "gemini-x"}, nil)
	if _, ok := c.(*Gemini); !ok || c.Model() != "gemini-x" {
		t.Errorf("expected Gemini classifier, got %T", c)
	}
}

func TestStripFences(t *testing.T) {
	tests := map[string]string{
		"```json\n{\"a\":1}\n```": `{"a":1}`,
		"```\n[1]\n```":           `[1]`,
		`  {"a":1}  `:             `{"a":1}`,
		"{\"a\":1}\n```":          `{"a":1}`,
	}
	for in, want := range tests {
		if got := StripFences(in); got != want {
			t.Errorf("StripFences(%q) = %q, want %q", in, got, want)
		}
	}
}

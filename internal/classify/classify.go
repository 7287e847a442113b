// Package classify guesses genre, artist and track for catalog entries.
//
// A [Classifier] is picked once at startup by [New]: the Gemini-backed variant when an API key is configured,
// otherwise [Unknown]. Optional capabilities ([TrackIdentifier], [MentionExtractor]) are discovered by type assertion.
package classify

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/desertthunder/prism/internal/models"
	"github.com/desertthunder/prism/internal/services"
	"github.com/desertthunder/prism/internal/shared"
)

// Result is what a classifier knows about one video.
type Result struct {
	Genre    string `json:"genre"`
	Fidelity int    `json:"fidelity"`
	Remarks  string `json:"remarks"`
	Artist   string `json:"artist"`
	Track    string `json:"track"`
	Model    string `json:"-"`
}

// Classifier assigns a genre to a video.
type Classifier interface {
	Classify(ctx context.Context, video services.VideoMetadata) (Result, error)
	// Model names the backing model; it is stored on every entry the classifier touches.
	Model() string
}

// TrackIdentifier names the artist and track of a video from its title alone.
type TrackIdentifier interface {
	IdentifyTrack(ctx context.Context, videoID, title string) (artist, track string, err error)
}

// Mention is an artist and track named in free text.
type Mention struct {
	Artist     string  `json:"artist"`
	Track      string  `json:"track"`
	Confidence float64 `json:"confidence"`
	Evidence   string  `json:"evidence"`
}

// MentionExtractor finds song mentions in prose. limit of 0 means no limit.
type MentionExtractor interface {
	ExtractMentions(ctx context.Context, text string, limit int) ([]Mention, error)
}

// Generator produces JSON text for a prompt; [services.GeminiService] satisfies it.
type Generator interface {
	GenerateJSON(ctx context.Context, prompt string, schema map[string]any) (string, error)
	Model() string
}

// New returns a Gemini classifier when an API key is configured and [Unknown] otherwise.
func New(cfg shared.GeminiConfig, logger *log.Logger) Classifier {
	if logger == nil {
		logger = shared.NewLogger(io.Discard)
	}

	svc, err := services.NewGeminiService(cfg, services.WithGeminiLogger(logger))
	if err != nil {
		logger.Info("genre classification disabled", "reason", err)
		return Unknown{}
	}
	logger.Debug("genre classification enabled", "model", svc.Model())
	return NewGemini(svc)
}

// ClassifyOrUnknown never fails: any classifier error becomes an "Unknown" result whose remarks describe the failure.
func ClassifyOrUnknown(ctx context.Context, c Classifier, video services.VideoMetadata) Result {
	res, err := c.Classify(ctx, video)
	if err != nil {
		return Result{
			Genre:   models.GenreUnknown,
			Remarks: fmt.Sprintf("classification failed: %v", err),
			Model:   c.Model(),
		}
	}
	res.Genre = models.NormalizeGenre(res.Genre)
	res.Fidelity = min(max(res.Fidelity, 0), 100)
	if res.Model == "" {
		res.Model = c.Model()
	}
	return res
}

// Unknown is the classifier used when no AI backend is configured.
type Unknown struct{}

func (Unknown) Classify(context.Context, services.VideoMetadata) (Result, error) {
	return Result{Genre: models.GenreUnknown, Remarks: "no classifier configured"}, nil
}

func (Unknown) Model() string { return "" }

// StripFences removes a surrounding markdown code fence from model output.
func StripFences(text string) string {
	cleaned := strings.TrimSpace(text)
	switch {
	case strings.HasPrefix(cleaned, "```json"):
		cleaned = strings.TrimSpace(strings.ReplaceAll(strings.ReplaceAll(cleaned, "```json", ""), "```", ""))
	case strings.HasPrefix(cleaned, "```"):
		cleaned = strings.TrimSpace(strings.ReplaceAll(cleaned, "```", ""))
	}
	if strings.HasSuffix(cleaned, "```") {
		cleaned = strings.TrimSpace(strings.TrimSuffix(cleaned, "```"))
	}
	return cleaned
}

func decodeJSON(text string, v any) error {
	cleaned := StripFences(text)
	if cleaned == "" {
		return fmt.Errorf("empty model response")
	}
	if err := json.Unmarshal([]byte(cleaned), v); err != nil {
		return fmt.Errorf("parse model response: %w", err)
	}
	return nil
}

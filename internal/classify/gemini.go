package classify

import (
	"context"
	"fmt"
	"strings"

	"github.com/desertthunder/prism/internal/models"
	"github.com/desertthunder/prism/internal/services"
)

var (
	classificationSchema = map[string]any{
		"type": "OBJECT",
		"properties": map[string]any{
			"genre":    map[string]any{"type": "STRING", "description": "The music genre. Must be one of the allowed genres or 'Unknown'."},
			"fidelity": map[string]any{"type": "INTEGER", "description": "Confidence score between 0 and 100."},
			"remarks":  map[string]any{"type": "STRING", "description": "Reasoning (2 sentences) for the classification."},
			"artist":   map[string]any{"type": "STRING", "description": "The name of the artist, or empty string if unknown."},
			"track":    map[string]any{"type": "STRING", "description": "The name of the track, or empty string if unknown."},
		},
		"required": []string{"genre", "fidelity", "remarks", "artist", "track"},
	}

	trackSchema = map[string]any{
		"type": "OBJECT",
		"properties": map[string]any{
			"artist": map[string]any{"type": "STRING"},
			"track":  map[string]any{"type": "STRING"},
		},
		"required": []string{"artist", "track"},
	}

	mentionSchema = map[string]any{
		"type": "OBJECT",
		"properties": map[string]any{
			"mentions": map[string]any{
				"type": "ARRAY",
				"items": map[string]any{
					"type": "OBJECT",
					"properties": map[string]any{
						"artist":     map[string]any{"type": "STRING"},
						"track":      map[string]any{"type": "STRING"},
						"confidence": map[string]any{"type": "NUMBER"},
						"evidence":   map[string]any{"type": "STRING"},
					},
					"required": []string{"artist", "track"},
				},
			},
		},
		"required": []string{"mentions"},
	}
)

// Gemini classifies with a [Generator], normally [services.GeminiService]. It also implements [TrackIdentifier] and
// [MentionExtractor].
type Gemini struct {
	gen Generator
}

func NewGemini(gen Generator) *Gemini { return &Gemini{gen: gen} }

func (g *Gemini) Model() string { return g.gen.Model() }

func (g *Gemini) Classify(ctx context.Context, video services.VideoMetadata) (Result, error) {
	text, err := g.gen.GenerateJSON(ctx, classificationPrompt(video), classificationSchema)
	if err != nil {
		return Result{}, err
	}

	var res Result
	if err := decodeJSON(text, &res); err != nil {
		return Result{}, err
	}
	res.Genre = models.NormalizeGenre(res.Genre)
	res.Artist = strings.TrimSpace(res.Artist)
	res.Track = strings.TrimSpace(res.Track)
	res.Model = g.Model()
	return res, nil
}

func classificationPrompt(video services.VideoMetadata) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Categorize the music genre of the song with YouTube Video ID '%s'", video.ID)
	if video.Title != "" {
		fmt.Fprintf(&sb, " and Title '%s'", video.Title)
	}
	if video.Description != "" {
		fmt.Fprintf(&sb, " and Description '%s'", video.Description)
	}
	sb.WriteString(".\n\n")
	fmt.Fprintf(&sb, "For \"genre\", select ONE of %s. Use \"%s\" if unsure.\n", strings.Join(models.Genres, ", "), models.GenreUnknown)
	sb.WriteString("For \"fidelity\", provide a confidence score between 0 (guessing) and 100 (absolutely certain).\n")
	sb.WriteString("For \"remarks\", provide a brief reasoning (1-2 sentences) for your classification.\n")
	sb.WriteString("For \"artist\" and \"track\", provide the most likely names, or leave empty if unknown.\n")
	sb.WriteString("Do not hallucinate. If you don't know, return \"Unknown\".")
	return sb.String()
}

// IdentifyTrack asks for artist and track from the title only. Empty strings mean the model did not know.
func (g *Gemini) IdentifyTrack(ctx context.Context, videoID, title string) (string, string, error) {
	prompt := fmt.Sprintf("Identify the artist and track name for the YouTube video with ID '%s'", videoID)
	if title != "" {
		prompt += fmt.Sprintf(" and Title '%s'", title)
	}
	prompt += "\nIMPORTANT: Do not hallucinate. If unknown, return empty strings."

	text, err := g.gen.GenerateJSON(ctx, prompt, trackSchema)
	if err != nil {
		return "", "", err
	}

	var out struct {
		Artist string `json:"artist"`
		Track  string `json:"track"`
	}
	if err := decodeJSON(text, &out); err != nil {
		return "", "", err
	}
	return strings.TrimSpace(out.Artist), strings.TrimSpace(out.Track), nil
}

// ExtractMentions returns mentions that name both an artist and a track.
func (g *Gemini) ExtractMentions(ctx context.Context, text string, limit int) ([]Mention, error) {
	raw, err := g.gen.GenerateJSON(ctx, mentionPrompt(text, limit), mentionSchema)
	if err != nil {
		return nil, err
	}

	parsed, err := parseMentions(raw)
	if err != nil {
		return nil, err
	}

	var mentions []Mention
	for _, m := range parsed {
		m.Artist = strings.TrimSpace(m.Artist)
		m.Track = strings.TrimSpace(m.Track)
		if m.Artist == "" || m.Track == "" {
			continue
		}
		mentions = append(mentions, m)
		if limit > 0 && len(mentions) >= limit {
			break
		}
	}
	return mentions, nil
}

func mentionPrompt(text string, limit int) string {
	note := ""
	if limit > 0 {
		note = fmt.Sprintf("Return at most %d mentions.", limit)
	}
	return "Extract mentions of specific music videos or songs from the text below. " +
		"Each mention must include BOTH the artist and the track name. " +
		"Ignore albums, genres, or artists without a track. " +
		"Do not guess. " +
		note + "\n\nTEXT:\n" + text
}

// parseMentions accepts either a bare list or {"mentions": [...]}.
func parseMentions(text string) ([]Mention, error) {
	cleaned := StripFences(text)
	if cleaned == "" {
		return nil, nil
	}
	if strings.HasPrefix(cleaned, "[") {
		var list []Mention
		if err := decodeJSON(cleaned, &list); err != nil {
			return nil, err
		}
		return list, nil
	}

	var wrapped struct {
		Mentions []Mention `json:"mentions"`
	}
	if err := decodeJSON(cleaned, &wrapped); err != nil {
		return nil, err
	}
	return wrapped.Mentions, nil
}

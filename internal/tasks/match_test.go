package tasks

import (
	"testing"

	"github.com/desertthunder/prism/internal/classify"
	"github.com/desertthunder/prism/internal/services"
)

func TestNormalizeText(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"Simon & Garfunkel", "simon and garfunkel"},
		{"  AC/DC -- Back In Black!! ", "ac dc back in black"},
		{"Beyoncé", "beyonc"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := NormalizeText(tt.in); got != tt.want {
			t.Errorf("NormalizeText(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestScoreCandidate(t *testing.T) {
	t.Run("exact title with phrase bonus is capped", func(t *testing.T) {
		c := ScoreCandidate("Radiohead", "Karma Police", services.SearchResult{Title: "Radiohead - Karma Police (Official Video)"})
		if c.Score != 1 || !c.PhraseHit {
			t.Errorf("candidate = %+v", c)
		}
	})

	t.Run("artist may come from the channel", func(t *testing.T) {
		c := ScoreCandidate("Radiohead", "Karma Police", services.SearchResult{Title: "Karma Police", ChannelTitle: "Radiohead"})
		if c.ArtistCoverage != 1 || c.TrackCoverage != 1 || c.PhraseHit {
			t.Errorf("candidate = %+v", c)
		}
		if c.Score != 1 {
			t.Errorf("Score = %v, want 1", c.Score)
		}
	})

	t.Run("stopword-only track keeps its tokens", func(t *testing.T) {
		c := ScoreCandidate("The The", "The", services.SearchResult{Title: "The The - The"})
		if c.TrackTokens != 1 || c.TrackCoverage != 0 {
			t.Errorf("candidate = %+v", c)
		}
	})
}

func TestCandidate_Acceptable(t *testing.T) {
	tests := []struct {
		name string
		c    Candidate
		want bool
	}{
		{"strong", Candidate{Score: 0.9, TrackCoverage: 1, ArtistCoverage: 0.5, TrackTokens: 2}, true},
		{"below threshold", Candidate{Score: 0.69, TrackCoverage: 1, ArtistCoverage: 1, TrackTokens: 2}, false},
		{"weak track", Candidate{Score: 0.9, TrackCoverage: 0.5, ArtistCoverage: 1, TrackTokens: 2}, false},
		{"weak artist", Candidate{Score: 0.9, TrackCoverage: 1, ArtistCoverage: 0.3, TrackTokens: 2}, false},
		{"single token without phrase", Candidate{Score: 0.8, TrackCoverage: 1, ArtistCoverage: 0.5, TrackTokens: 1}, false},
		{"single token with phrase", Candidate{Score: 0.8, TrackCoverage: 1, ArtistCoverage: 0.5, TrackTokens: 1, PhraseHit: true}, true},
		{"single token strong artist", Candidate{Score: 0.8, TrackCoverage: 1, ArtistCoverage: 0.6, TrackTokens: 1}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.c.Acceptable(DefaultMatchThreshold); got != tt.want {
				t.Errorf("Acceptable() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestPickBestMatch(t *testing.T) {
	t.Run("no results", func(t *testing.T) {
		if _, ok, accepted := PickBestMatch("a", "b", nil, DefaultMatchThreshold); ok || accepted {
			t.Error("expected no match")
		}
	})

	t.Run("first result wins ties", func(t *testing.T) {
		results := []services.SearchResult{
			{VideoID: "first000001", Title: "Blur Song 2"},
			{VideoID: "second00002", Title: "Blur Song 2"},
		}
		best, ok, accepted := PickBestMatch("Blur", "Song 2", results, DefaultMatchThreshold)
		if !ok || !accepted || best.VideoID != "first000001" {
			t.Errorf("best = %+v, ok = %v, accepted = %v", best, ok, accepted)
		}
	})

	t.Run("higher score wins", func(t *testing.T) {
		results := []services.SearchResult{
			{VideoID: "cover000001", Title: "Song 2 cover"},
			{VideoID: "orig0000001", Title: "Blur - Song 2"},
		}
		best, _, _ := PickBestMatch("Blur", "Song 2", results, DefaultMatchThreshold)
		if best.VideoID != "orig0000001" {
			t.Errorf("best = %s", best.VideoID)
		}
	})
}

func TestDedupeMentions(t *testing.T) {
	in := []classify.Mention{
		{Artist: "Blur", Track: "Song 2", Confidence: 0.4},
		{Artist: "Pulp", Track: "Common People", Confidence: 0.7},
		{Artist: "BLUR", Track: "song 2!", Confidence: 0.9},
		{Artist: "", Track: "", Confidence: 1},
	}
	got := DedupeMentions(in)
	if len(got) != 2 {
		t.Fatalf("DedupeMentions() = %+v", got)
	}
	if got[0].Artist != "BLUR" || got[0].Confidence != 0.9 {
		t.Errorf("first = %+v, want the confident Blur mention", got[0])
	}
	if got[1].Artist != "Pulp" {
		t.Errorf("second = %+v", got[1])
	}
}

func TestSearchQuery(t *testing.T) {
	got := SearchQuery(classify.Mention{Artist: "Blur", Track: "Song 2"})
	if got != "Blur Song 2 official music video" {
		t.Errorf("SearchQuery() = %q", got)
	}
}

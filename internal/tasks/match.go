package tasks

import (
	"cmp"
	"regexp"
	"slices"
	"strings"

	"github.com/desertthunder/prism/internal/classify"
	"github.com/desertthunder/prism/internal/services"
)

const (
	DefaultMatchThreshold   = 0.70
	DefaultMaxSearchResults = 5

	minTrackCoverage       = 0.60
	minArtistCoverage      = 0.40
	singleTokenArtistFloor = 0.60
	phraseBonus            = 0.15
)

var nonAlnum = regexp.MustCompile(`[^a-z0-9]+`)

// matchStopwords are ignored when comparing mentions with search results.
var matchStopwords = map[string]bool{
	"the": true, "a": true, "an": true, "and": true, "or": true, "of": true, "to": true, "in": true, "on": true,
	"for": true, "with": true, "official": true, "video": true, "music": true, "mv": true, "audio": true,
	"lyrics": true, "lyric": true, "visualizer": true, "live": true, "hd": true, "4k": true, "remastered": true,
	"remaster": true, "edit": true, "version": true, "feat": true, "ft": true, "featuring": true,
	"performance": true, "clip": true,
}

// NormalizeText lowercases s, spells out "&" and collapses everything but ASCII letters and digits to single spaces.
func NormalizeText(s string) string {
	clean := strings.ReplaceAll(strings.ToLower(s), "&", " and ")
	clean = nonAlnum.ReplaceAllString(clean, " ")
	return strings.Join(strings.Fields(clean), " ")
}

func tokenize(s string, dropStopwords bool) []string {
	tokens := strings.Fields(NormalizeText(s))
	if !dropStopwords {
		return tokens
	}
	return slices.DeleteFunc(tokens, func(t string) bool { return matchStopwords[t] })
}

// significantTokens drops stopwords unless that would leave nothing.
func significantTokens(s string) []string {
	if tokens := tokenize(s, true); len(tokens) > 0 {
		return tokens
	}
	return tokenize(s, false)
}

func tokenSet(tokens ...[]string) map[string]bool {
	set := make(map[string]bool)
	for _, ts := range tokens {
		for _, t := range ts {
			set[t] = true
		}
	}
	return set
}

func coverage(tokens []string, haystack map[string]bool) float64 {
	if len(tokens) == 0 {
		return 0
	}
	hits := 0
	for _, t := range tokens {
		if haystack[t] {
			hits++
		}
	}
	return float64(hits) / float64(len(tokens))
}

func phraseMatch(artist, track, title string) bool {
	phrase := NormalizeText(artist + " " + track)
	if phrase == "" {
		return false
	}
	return strings.Contains(NormalizeText(title), phrase)
}

// Candidate is a search result scored against a mention.
type Candidate struct {
	services.SearchResult
	Score          float64 `json:"score"`
	TrackCoverage  float64 `json:"track_coverage"`
	ArtistCoverage float64 `json:"artist_coverage"`
	PhraseHit      bool    `json:"phrase_hit"`
	TrackTokens    int     `json:"track_tokens"`
}

// ScoreCandidate rates how well a search result matches artist and track.
//
// score = 0.6·track coverage + 0.4·artist coverage, plus 0.15 when "artist track" appears verbatim in the title,
// capped at 1. Artist tokens may match the title or the channel name; track tokens must match the title.
func ScoreCandidate(artist, track string, r services.SearchResult) Candidate {
	titleTokens := tokenSet(tokenize(r.Title, true))
	combined := tokenSet(tokenize(r.Title, true), tokenize(r.ChannelTitle, true))

	artistTokens := significantTokens(artist)
	trackTokens := significantTokens(track)

	c := Candidate{SearchResult: r, TrackTokens: len(trackTokens)}
	c.ArtistCoverage = max(coverage(artistTokens, combined), coverage(artistTokens, titleTokens))
	c.TrackCoverage = coverage(trackTokens, titleTokens)
	c.PhraseHit = phraseMatch(artist, track, r.Title)

	c.Score = 0.6*c.TrackCoverage + 0.4*c.ArtistCoverage
	if c.PhraseHit {
		c.Score = min(c.Score+phraseBonus, 1.0)
	}
	return c
}

// Acceptable reports whether c is strong enough to ingest at the given score threshold.
//
// Single-word tracks are easy to hit by accident, so they additionally need the exact phrase or a well-covered artist.
func (c Candidate) Acceptable(threshold float64) bool {
	if c.Score < threshold {
		return false
	}
	if c.TrackCoverage < minTrackCoverage || c.ArtistCoverage < minArtistCoverage {
		return false
	}
	if c.TrackTokens <= 1 && !c.PhraseHit && c.ArtistCoverage < singleTokenArtistFloor {
		return false
	}
	return true
}

// PickBestMatch scores every result and returns the highest scoring one. The first result wins ties. ok is false when
// there are no results; accepted reports whether the best candidate passes [Candidate.Acceptable].
func PickBestMatch(artist, track string, results []services.SearchResult, threshold float64) (best Candidate, ok, accepted bool) {
	for _, r := range results {
		c := ScoreCandidate(artist, track, r)
		if !ok || c.Score > best.Score {
			best, ok = c, true
		}
	}
	if !ok {
		return Candidate{}, false, false
	}
	return best, true, best.Acceptable(threshold)
}

func mentionKey(m classify.Mention) string {
	return NormalizeText(m.Artist) + "::" + NormalizeText(m.Track)
}

// DedupeMentions keeps one mention per normalized artist and track, the most confident one, ordered by descending
// confidence.
func DedupeMentions(mentions []classify.Mention) []classify.Mention {
	index := make(map[string]int)
	var out []classify.Mention
	for _, m := range mentions {
		key := mentionKey(m)
		if strings.Trim(key, ":") == "" {
			continue
		}
		if i, ok := index[key]; ok {
			if m.Confidence > out[i].Confidence {
				out[i] = m
			}
			continue
		}
		index[key] = len(out)
		out = append(out, m)
	}
	slices.SortStableFunc(out, func(a, b classify.Mention) int {
		return cmp.Compare(b.Confidence, a.Confidence)
	})
	return out
}

// SearchQuery is the YouTube query used to resolve a mention.
func SearchQuery(m classify.Mention) string {
	return strings.TrimSpace(m.Artist + " " + m.Track + " official music video")
}

func dedupe(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

package tasks

import (
	"context"
	"errors"
	"fmt"
	"net/url"

	"github.com/desertthunder/prism/internal/classify"
	"github.com/desertthunder/prism/internal/shared"
	"github.com/desertthunder/prism/internal/source"
)

// ScanOptions configures [Ingester.Scan].
type ScanOptions struct {
	MaxMentions      int // 0 means no limit
	MaxSearchResults int
	MatchThreshold   float64
	DryRun           bool
}

// ScanOptionsFromConfig fills the search settings from the [ingest] config section.
func ScanOptionsFromConfig(cfg shared.IngestConfig) ScanOptions {
	opts := ScanOptions{MaxSearchResults: DefaultMaxSearchResults, MatchThreshold: DefaultMatchThreshold}
	if cfg.MaxSearchResults > 0 {
		opts.MaxSearchResults = cfg.MaxSearchResults
	}
	if cfg.MatchThreshold > 0 {
		opts.MatchThreshold = cfg.MatchThreshold
	}
	return opts
}

// MentionMatch is the search outcome for one mention.
type MentionMatch struct {
	Mention  classify.Mention `json:"mention"`
	Query    string           `json:"query"`
	Best     Candidate        `json:"best"`
	Found    bool             `json:"found"`
	Accepted bool             `json:"accepted"`
	Error    string           `json:"error,omitempty"`
}

// ScanResult reports what a page scan found and, unless it was a dry run, what was ingested.
type ScanResult struct {
	URL       string         `json:"url"`
	Title     string         `json:"title"`
	DirectIDs []string       `json:"direct_ids"`
	Blocks    int            `json:"text_blocks"`
	Chunks    int            `json:"text_chunks"`
	Mentions  []MentionMatch `json:"mentions"`
	VideoIDs  []string       `json:"video_ids"`
	Batch     *BatchResult   `json:"batch,omitempty"`
	DryRun    bool           `json:"dry_run"`
}

// Scan collects videos from an arbitrary web page: embedded video IDs first, then songs mentioned in the page text
// that could be resolved through search. Every found video is ingested with the page URL as its source.
//
// Mentions are only extracted when the classifier implements [classify.MentionExtractor].
func (in *Ingester) Scan(ctx context.Context, progress chan<- ProgressUpdate, fetcher Fetcher, pageURL string, opts ScanOptions) (*ScanResult, error) {
	u, err := url.Parse(pageURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("%w: %q is not an http(s) URL", shared.ErrInvalidInput, pageURL)
	}
	if opts.MaxSearchResults <= 0 {
		opts.MaxSearchResults = DefaultMaxSearchResults
	}
	if opts.MatchThreshold <= 0 {
		opts.MatchThreshold = DefaultMatchThreshold
	}

	body, err := fetcher.Get(ctx, pageURL)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", pageURL, err)
	}

	res := &ScanResult{URL: pageURL, DryRun: opts.DryRun}
	res.Title = source.ExtractTitle(body)
	res.DirectIDs = dedupe(source.ExtractVideoIDs(body))

	blocks, err := source.VisibleTextBlocks(body)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", pageURL, err)
	}
	chunks := source.ChunkBlocks(blocks, source.MaxChunkChars)
	res.Blocks, res.Chunks = len(blocks), len(chunks)
	sendProgress(progress, scanPageUpdate(pageURL, len(res.DirectIDs), res.Blocks, res.Chunks))
	in.logger.Info("page scanned", "url", pageURL, "direct", len(res.DirectIDs), "blocks", res.Blocks, "chunks", res.Chunks)

	mentions := DedupeMentions(in.extractMentions(ctx, chunks, opts.MaxMentions))
	in.logger.Info("mentions extracted", "count", len(mentions))

	var resolved []string
	for i, m := range mentions {
		match, err := in.resolveMention(ctx, m, opts)
		if err != nil {
			return res, err
		}
		res.Mentions = append(res.Mentions, match)
		sendProgress(progress, searchMentionUpdate(i+1, len(mentions), match))
		if match.Accepted {
			resolved = append(resolved, match.Best.VideoID)
		}
	}

	res.VideoIDs = dedupe(append(append([]string{}, res.DirectIDs...), resolved...))
	if len(res.VideoIDs) == 0 || opts.DryRun {
		return res, nil
	}

	batch, err := in.IngestBatch(ctx, progress, res.VideoIDs, pageURL, Extras{}, 0)
	res.Batch = &batch
	return res, err
}

// extractMentions asks the classifier for mentions chunk by chunk until limit is reached. Failing chunks are logged
// and skipped.
func (in *Ingester) extractMentions(ctx context.Context, chunks []string, limit int) []classify.Mention {
	extractor, ok := in.classifier.(classify.MentionExtractor)
	if !ok {
		if len(chunks) > 0 {
			in.logger.Warn("classifier cannot extract mentions, using embedded videos only")
		}
		return nil
	}

	var mentions []classify.Mention
	for i, chunk := range chunks {
		remaining := 0
		if limit > 0 {
			remaining = limit - len(mentions)
			if remaining <= 0 {
				break
			}
		}

		found, err := extractor.ExtractMentions(ctx, chunk, remaining)
		if err != nil {
			in.logger.Warn("mention extraction failed", "chunk", i+1, "err", err)
			continue
		}
		mentions = append(mentions, found...)
	}
	if limit > 0 && len(mentions) > limit {
		mentions = mentions[:limit]
	}
	return mentions
}

// resolveMention searches for m. Search failures other than quota and credential errors only mark the mention.
func (in *Ingester) resolveMention(ctx context.Context, m classify.Mention, opts ScanOptions) (MentionMatch, error) {
	match := MentionMatch{Mention: m, Query: SearchQuery(m)}

	results, err := in.host.SearchVideos(ctx, match.Query, opts.MaxSearchResults)
	if err != nil {
		if errors.Is(err, shared.ErrQuotaExceeded) || errors.Is(err, shared.ErrReauthRequired) || ctx.Err() != nil {
			return match, err
		}
		in.logger.Warn("search failed", "query", match.Query, "err", err)
		match.Error = err.Error()
		return match, nil
	}

	match.Best, match.Found, match.Accepted = PickBestMatch(m.Artist, m.Track, results, opts.MatchThreshold)
	if match.Accepted {
		in.logger.Debug("mention resolved", "query", match.Query, "video", match.Best.VideoID, "score", match.Best.Score)
	} else if match.Found {
		in.logger.Debug("no strong match", "query", match.Query, "best", match.Best.VideoID, "score", match.Best.Score)
	}
	return match, nil
}

// package formatter renders catalog entries, statistics and users as tables, JSON, CSV or Markdown
package formatter

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/desertthunder/prism/internal/models"
	"github.com/desertthunder/prism/internal/services"
)

// Format selects an output encoding.
type Format string

const (
	FormatTable    Format = "table"
	FormatJSON     Format = "json"
	FormatCSV      Format = "csv"
	FormatMarkdown Format = "markdown"
)

// Formats lists every accepted format name.
var Formats = []Format{FormatTable, FormatJSON, FormatCSV, FormatMarkdown}

// ParseFormat accepts a format name ignoring case; "md" is short for markdown. An empty name means table.
func ParseFormat(name string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "table":
		return FormatTable, nil
	case "json":
		return FormatJSON, nil
	case "csv":
		return FormatCSV, nil
	case "markdown", "md":
		return FormatMarkdown, nil
	}
	return "", fmt.Errorf("unknown format %q (want table, json, csv or markdown)", name)
}

// EntryRow is one entry as seen by a user: the user's rating and effective genre instead of the raw record.
type EntryRow struct {
	VideoID  string `json:"video_id"`
	Artist   string `json:"artist"`
	Track    string `json:"track"`
	Title    string `json:"title"`
	Genre    string `json:"genre"`
	Music    int    `json:"rating_music"`
	Video    int    `json:"rating_video"`
	Favorite bool   `json:"favorite"`
	Rejected bool   `json:"rejected"`
	Rated    bool   `json:"rated"`
	URL      string `json:"url"`
}

// Rows projects entries onto u's point of view.
func Rows(entries []*models.Entry, u *models.User) []EntryRow {
	rows := make([]EntryRow, 0, len(entries))
	for _, e := range entries {
		r, rated := e.RatingFor(u)
		rows = append(rows, EntryRow{
			VideoID:  e.VideoID,
			Artist:   e.Artist,
			Track:    e.Track,
			Title:    e.Title,
			Genre:    e.EffectiveGenre(u),
			Music:    r.RatingMusic,
			Video:    r.RatingVideo,
			Favorite: r.Favorite,
			Rejected: r.Rejected,
			Rated:    rated,
			URL:      services.VideoURL(e.VideoID),
		})
	}
	return rows
}

func (r EntryRow) stars(score int) string {
	if !r.Rated {
		return "-"
	}
	return strings.Repeat("★", score) + strings.Repeat("☆", models.MaxScore-score)
}

func (r EntryRow) flags() string {
	var flags []string
	if r.Favorite {
		flags = append(flags, "fav")
	}
	if r.Rejected {
		flags = append(flags, "rejected")
	}
	return strings.Join(flags, ",")
}

// label is "artist - track", falling back to the video title when either is unknown.
func (r EntryRow) label() (string, string) {
	if r.Artist == "" || r.Track == "" {
		return "", r.Title
	}
	return r.Artist, r.Track
}

// WriteEntries renders entries for u in format f.
func WriteEntries(w io.Writer, f Format, entries []*models.Entry, u *models.User) error {
	rows := Rows(entries, u)
	switch f {
	case FormatJSON:
		return WriteJSON(w, rows)
	case FormatCSV:
		data, err := EntriesCSV(rows)
		if err != nil {
			return err
		}
		_, err = w.Write(data)
		return err
	case FormatMarkdown:
		_, err := io.WriteString(w, EntriesMarkdown(rows))
		return err
	default:
		_, err := fmt.Fprintln(w, EntriesTable(rows))
		return err
	}
}

// EntriesTable renders rows as a rounded terminal table.
func EntriesTable(rows []EntryRow) string {
	headers := []string{"#", "Video", "Artist", "Track", "Genre", "Music", "Video", "Flags"}
	body := make([][]string, 0, len(rows))
	for i, r := range rows {
		artist, track := r.label()
		body = append(body, []string{
			strconv.Itoa(i + 1), r.VideoID, artist, track, r.Genre, r.stars(r.Music), r.stars(r.Video), r.flags(),
		})
	}
	return renderTable(headers, body, []columnAlignment{alignRight})
}

// EntriesCSV encodes rows with a header line.
func EntriesCSV(rows []EntryRow) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	headers := []string{"video_id", "artist", "track", "title", "genre", "rating_music", "rating_video", "favorite", "rejected", "url"}
	if err := writer.Write(headers); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for _, r := range rows {
		record := []string{
			r.VideoID, r.Artist, r.Track, r.Title, r.Genre,
			strconv.Itoa(r.Music), strconv.Itoa(r.Video),
			strconv.FormatBool(r.Favorite), strconv.FormatBool(r.Rejected), r.URL,
		}
		if !r.Rated {
			record[5], record[6] = "", ""
		}
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}
	return buf.Bytes(), nil
}

// EntriesMarkdown renders rows as a numbered list of links.
func EntriesMarkdown(rows []EntryRow) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Catalog\n\n**Entries**: %d\n\n", len(rows))
	for i, r := range rows {
		artist, track := r.label()
		name := track
		if artist != "" {
			name = artist + " - " + track
		}
		fmt.Fprintf(&b, "%d. [%s](%s) _%s_", i+1, escapeMarkdown(name), r.URL, r.Genre)
		if r.Rated {
			fmt.Fprintf(&b, " music %d/5, video %d/5", r.Music, r.Video)
		}
		if f := r.flags(); f != "" {
			fmt.Fprintf(&b, " (%s)", f)
		}
		b.WriteString("\n")
	}
	return b.String()
}

func escapeMarkdown(s string) string {
	return strings.NewReplacer("[", `\[`, "]", `\]`, "*", `\*`, "_", `\_`).Replace(s)
}

// WriteStats renders catalog statistics.
func WriteStats(w io.Writer, f Format, s models.Stats) error {
	if f == FormatJSON {
		return WriteJSON(w, s)
	}

	summary := renderTable(
		[]string{"Entries", "Rated", "Favorites", "Rejected"},
		[][]string{{
			strconv.Itoa(s.Total),
			fmt.Sprintf("%d (%.1f%%)", s.Rated, s.RatedPct),
			fmt.Sprintf("%d (%.1f%%)", s.Favorites, s.FavoritePct),
			fmt.Sprintf("%d (%.1f%%)", s.Rejected, s.RejectedPct),
		}},
		[]columnAlignment{alignRight, alignRight, alignRight, alignRight},
	)

	genres := make([][]string, 0, len(s.Genres))
	for _, g := range s.Genres {
		genres = append(genres, []string{g.Genre, strconv.Itoa(g.Count), fmt.Sprintf("%.1f%%", g.Pct)})
	}
	_, err := fmt.Fprintf(w, "%s\n%s\n", summary, renderTable([]string{"Genre", "Entries", "Share"}, genres, []columnAlignment{alignLeft, alignRight, alignRight}))
	return err
}

// WriteUsers renders users in creation order.
func WriteUsers(w io.Writer, f Format, users []*models.User) error {
	if f == FormatJSON {
		type user struct {
			ID           string `json:"id"`
			Sequence     int    `json:"sequence"`
			Email        string `json:"email,omitempty"`
			Role         string `json:"role"`
			Status       string `json:"status"`
			AuthProvider string `json:"auth_provider"`
			RatingKey    string `json:"rating_key"`
		}
		out := make([]user, 0, len(users))
		for _, u := range users {
			out = append(out, user{u.ID(), u.Sequence(), u.Email(), u.Role(), u.Status(), u.AuthProvider(), u.RatingKey()})
		}
		return WriteJSON(w, out)
	}

	rows := make([][]string, 0, len(users))
	for _, u := range users {
		rows = append(rows, []string{
			strconv.Itoa(u.Sequence()), u.ID(), u.Role(), u.Status(), u.AuthProvider(), u.CreatedAt().Format("2006-01-02"),
		})
	}
	_, err := fmt.Fprintln(w, renderTable([]string{"#", "User", "Role", "Status", "Provider", "Created"}, rows, []columnAlignment{alignRight}))
	return err
}

// WriteJSON writes v as indented JSON followed by a newline.
func WriteJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("failed to encode JSON: %w", err)
	}
	return nil
}

type columnAlignment int

const (
	alignLeft columnAlignment = iota
	alignRight
)

func renderTable(headers []string, rows [][]string, aligns []columnAlignment) string {
	columns := len(headers)
	if columns == 0 {
		return ""
	}

	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)

	header := make(table.Row, columns)
	for i := range columns {
		header[i] = headers[i]
	}
	tw.AppendHeader(header)

	for _, row := range rows {
		r := make(table.Row, columns)
		for i := range columns {
			if i < len(row) {
				r[i] = row[i]
			} else {
				r[i] = ""
			}
		}
		tw.AppendRow(r)
	}

	configs := make([]table.ColumnConfig, 0, columns)
	for i := range columns {
		align := text.AlignLeft
		if i < len(aligns) && aligns[i] == alignRight {
			align = text.AlignRight
		}
		configs = append(configs, table.ColumnConfig{Number: i + 1, Align: align, AlignHeader: text.AlignLeft})
	}
	tw.SetColumnConfigs(configs)

	return tw.Render()
}

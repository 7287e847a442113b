package tasks

import (
	"errors"
	"testing"
	"time"

	"github.com/desertthunder/prism/internal/models"
	"github.com/desertthunder/prism/internal/shared"
	tu "github.com/desertthunder/prism/internal/testing"
)

var testNow = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func newTestCatalog(t *testing.T) *Catalog {
	t.Helper()
	entries, users := tu.NewTestStores(t)
	c := NewCatalog(entries, users, nil)
	c.now = func() time.Time { return testNow }
	c.rand = func() float64 { return 0.5 }
	return c
}

func mustEntry(t *testing.T, c *Catalog, id, artist, track, genre string) *models.Entry {
	t.Helper()
	e := &models.Entry{VideoID: id, Title: artist + " - " + track, Artist: artist, Track: track, Genre: genre, DatePrism: testNow}
	tu.MustCreateEntry(t, c.Entries(), e)
	return e
}

func TestCatalog_EnsureUser(t *testing.T) {
	t.Run("creates on first use", func(t *testing.T) {
		c := newTestCatalog(t)
		u, err := c.EnsureUser(UserSpec{ID: "ana@example.com", AuthProvider: models.ProviderGoogle})
		if err != nil {
			t.Fatalf("EnsureUser() error = %v", err)
		}
		if u.Role() != models.RoleUser || !u.IsActive() || u.Email() != "ana@example.com" {
			t.Errorf("user = %+v", u)
		}
	})

	t.Run("keeps role unless forced", func(t *testing.T) {
		c := newTestCatalog(t)
		if _, err := c.EnsureUser(UserSpec{ID: "sam", Role: models.RoleAdmin}); err != nil {
			t.Fatal(err)
		}

		u, err := c.EnsureUser(UserSpec{ID: "sam", Role: models.RoleUser})
		if err != nil || u.Role() != models.RoleAdmin {
			t.Fatalf("role = %q, err = %v, want admin kept", u.Role(), err)
		}
		u, err = c.EnsureUser(UserSpec{ID: "sam", Role: models.RoleUser, ForceRole: true})
		if err != nil || u.Role() != models.RoleUser {
			t.Fatalf("role = %q, err = %v, want user", u.Role(), err)
		}
		if u.RatingKey() != models.RatingKey("sam") {
			t.Errorf("rating key changed to %q", u.RatingKey())
		}
	})

	t.Run("empty id", func(t *testing.T) {
		c := newTestCatalog(t)
		if _, err := c.EnsureUser(UserSpec{ID: "  "}); !errors.Is(err, shared.ErrMissingArgument) {
			t.Errorf("EnsureUser() error = %v", err)
		}
	})
}

func TestCatalog_Rate(t *testing.T) {
	t.Run("stores clamped scores and keeps rated_at", func(t *testing.T) {
		c := newTestCatalog(t)
		mustEntry(t, c, "aaaaaaaaaa1", "Blur", "Song 2", "Rock")

		r, err := c.Rate("aaaaaaaaaa1", "sam", models.RatingInput{Music: 9, Video: -2})
		if err != nil {
			t.Fatalf("Rate() error = %v", err)
		}
		if r.RatingMusic != 5 || r.RatingVideo != 1 {
			t.Errorf("scores = %d/%d, want 5/1", r.RatingMusic, r.RatingVideo)
		}

		c.now = func() time.Time { return testNow.Add(time.Hour) }
		r, err = c.Rate("aaaaaaaaaa1", "sam", models.RatingInput{Music: 4, Video: 4, Favorite: true})
		if err != nil {
			t.Fatalf("Rate() error = %v", err)
		}
		if !r.RatedAt.Equal(testNow) || !r.UpdatedAt.Equal(testNow.Add(time.Hour)) {
			t.Errorf("rated_at = %v, updated_at = %v", r.RatedAt, r.UpdatedAt)
		}

		e, _ := c.Entries().Get("aaaaaaaaaa1")
		if got := e.Ratings[models.RatingKey("sam")]; !got.Favorite || got.RatingMusic != 4 {
			t.Errorf("stored rating = %+v", got)
		}
	})

	t.Run("missing score defaults to 3", func(t *testing.T) {
		c := newTestCatalog(t)
		mustEntry(t, c, "aaaaaaaaaa1", "Blur", "Song 2", "Rock")

		r, err := c.Rate("aaaaaaaaaa1", "sam", models.RatingInput{Music: 0, Video: 4})
		if err != nil {
			t.Fatalf("Rate() error = %v", err)
		}
		if r.RatingMusic != 3 || r.RatingVideo != 4 {
			t.Errorf("scores = %d/%d, want 3/4", r.RatingMusic, r.RatingVideo)
		}
	})

	t.Run("genre override only when different", func(t *testing.T) {
		c := newTestCatalog(t)
		mustEntry(t, c, "aaaaaaaaaa1", "Blur", "Song 2", "Rock")

		r, err := c.Rate("aaaaaaaaaa1", "sam", models.RatingInput{Music: 3, Video: 3, Genre: "rock"})
		if err != nil || r.GenreOverride != "" {
			t.Fatalf("override = %q, err = %v", r.GenreOverride, err)
		}
		r, err = c.Rate("aaaaaaaaaa1", "sam", models.RatingInput{Music: 3, Video: 3, Genre: "punk"})
		if err != nil || r.GenreOverride != "Punk" {
			t.Fatalf("override = %q, err = %v", r.GenreOverride, err)
		}
	})

	t.Run("invalid genre", func(t *testing.T) {
		c := newTestCatalog(t)
		mustEntry(t, c, "aaaaaaaaaa1", "Blur", "Song 2", "Rock")
		if _, err := c.Rate("aaaaaaaaaa1", "sam", models.RatingInput{Genre: "Polka"}); !errors.Is(err, shared.ErrInvalidArgument) {
			t.Errorf("Rate() error = %v", err)
		}
	})

	t.Run("disabled user", func(t *testing.T) {
		c := newTestCatalog(t)
		mustEntry(t, c, "aaaaaaaaaa1", "Blur", "Song 2", "Rock")
		if _, err := c.EnsureUser(UserSpec{ID: "sam"}); err != nil {
			t.Fatal(err)
		}
		if err := c.DisableUser("sam"); err != nil {
			t.Fatal(err)
		}
		if _, err := c.Rate("aaaaaaaaaa1", "sam", models.RatingInput{}); !errors.Is(err, shared.ErrInvalidArgument) {
			t.Errorf("Rate() error = %v", err)
		}
	})

	t.Run("missing entry", func(t *testing.T) {
		c := newTestCatalog(t)
		if _, err := c.Rate("nothinghere", "sam", models.RatingInput{}); !errors.Is(err, shared.ErrNotFound) {
			t.Errorf("Rate() error = %v", err)
		}
	})
}

func TestCatalog_List(t *testing.T) {
	c := newTestCatalog(t)
	mustEntry(t, c, "aaaaaaaaaa1", "Pulp", "Common People", "Rock")
	mustEntry(t, c, "aaaaaaaaaa2", "blur", "Song 2", "Rock")
	mustEntry(t, c, "aaaaaaaaaa3", "Air", "La Femme d'Argent", "Electronic")

	for _, id := range []string{"aaaaaaaaaa1", "aaaaaaaaaa2"} {
		if _, err := c.Rate(id, "sam", models.RatingInput{Music: 4, Video: 4}); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := c.Rate("aaaaaaaaaa3", "sam", models.RatingInput{Music: 2, Video: 5}); err != nil {
		t.Fatal(err)
	}

	t.Run("filters and sorts by artist", func(t *testing.T) {
		got, u, err := c.List("sam", models.DefaultFilter())
		if err != nil {
			t.Fatalf("List() error = %v", err)
		}
		if u.ID() != "sam" || len(got) != 2 {
			t.Fatalf("List() = %d entries for %s", len(got), u.ID())
		}
		if got[0].Artist != "blur" || got[1].Artist != "Pulp" {
			t.Errorf("order = %s, %s", got[0].Artist, got[1].Artist)
		}
	})

	t.Run("other users see the catalog unrated", func(t *testing.T) {
		f := models.DefaultFilter()
		got, _, err := c.List("someone-else", f)
		if err != nil || len(got) != 0 {
			t.Fatalf("List() = %d entries, err = %v", len(got), err)
		}
		f.IncludeUnrated = true
		if got, _, _ = c.List("", f); len(got) != 3 {
			t.Errorf("List() with unrated = %d entries, want 3", len(got))
		}
	})

	t.Run("stats", func(t *testing.T) {
		s, err := c.Stats("sam")
		if err != nil {
			t.Fatalf("Stats() error = %v", err)
		}
		if s.Total != 3 || s.Rated != 3 {
			t.Errorf("stats = %+v", s)
		}
	})
}

func TestCatalog_DeleteUser(t *testing.T) {
	c := newTestCatalog(t)
	mustEntry(t, c, "aaaaaaaaaa1", "Blur", "Song 2", "Rock")
	if _, err := c.Rate("aaaaaaaaaa1", "guest", models.RatingInput{Music: 5, Video: 5}); err != nil {
		t.Fatal(err)
	}
	if _, err := c.EnsureUser(UserSpec{ID: "boss", Role: models.RoleAdmin}); err != nil {
		t.Fatal(err)
	}

	t.Run("protected users", func(t *testing.T) {
		for _, tt := range []struct{ id, admin, caller string }{
			{"boss", "", ""},
			{"guest", "guest", ""},
			{"guest", "", "guest"},
		} {
			if _, err := c.DeleteUser(tt.id, tt.admin, tt.caller); !errors.Is(err, shared.ErrInvalidArgument) {
				t.Errorf("DeleteUser(%q) error = %v", tt.id, err)
			}
		}
	})

	t.Run("removes user and ratings", func(t *testing.T) {
		removed, err := c.DeleteUser("guest", "boss", "boss")
		if err != nil || removed != 1 {
			t.Fatalf("DeleteUser() = %d, %v", removed, err)
		}
		if _, err := c.Users().Get("guest"); !errors.Is(err, shared.ErrNotFound) {
			t.Errorf("user still present: %v", err)
		}
		e, _ := c.Entries().Get("aaaaaaaaaa1")
		if len(e.Ratings) != 0 {
			t.Errorf("ratings left: %v", e.Ratings)
		}
	})
}

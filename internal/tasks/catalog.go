package tasks

import (
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/desertthunder/prism/internal/models"
	"github.com/desertthunder/prism/internal/shared"
)

// Catalog groups operations on stored entries and users that need no remote service.
type Catalog struct {
	entries models.EntryStore
	users   models.UserStore
	logger  *log.Logger

	now  func() time.Time
	rand func() float64
}

func NewCatalog(entries models.EntryStore, users models.UserStore, logger *log.Logger) *Catalog {
	if logger == nil {
		logger = shared.NewLogger(io.Discard)
	}
	return &Catalog{entries: entries, users: users, logger: logger, now: time.Now, rand: rand.Float64}
}

func (c *Catalog) Entries() models.EntryStore { return c.entries }
func (c *Catalog) Users() models.UserStore { return c.users }

// UserSpec describes a user to create or update with [Catalog.EnsureUser].
type UserSpec struct {
	ID           string
	AuthProvider string
	Role         string // empty keeps the stored role, or the default for new users
	Status       string // empty keeps the stored status, or active for new users
	ForceRole    bool   // overwrite the stored role with Role
}

// EnsureUser returns the user with want.ID, creating it on first use.
//
// An existing user keeps its role unless ForceRole is set, and always keeps its rating key.
func (c *Catalog) EnsureUser(want UserSpec) (*models.User, error) {
	id := strings.TrimSpace(want.ID)
	if id == "" {
		return nil, fmt.Errorf("%w: user id", shared.ErrMissingArgument)
	}

	u, err := c.users.Get(id)
	switch {
	case errors.Is(err, shared.ErrNotFound):
		u = models.NewUser(id, want.AuthProvider)
		if want.Role != "" {
			u.SetRole(want.Role)
		}
		if want.Status != "" {
			u.SetStatus(want.Status)
		}
		if err := c.users.Create(u); err != nil {
			return nil, err
		}
		c.logger.Info("user created", "user", id, "role", u.Role())
		return u, nil
	case err != nil:
		return nil, err
	}

	changed := false
	if want.Role != "" && want.ForceRole && u.Role() != want.Role {
		u.SetRole(want.Role)
		changed = true
	}
	if want.Status != "" && u.Status() != want.Status {
		u.SetStatus(want.Status)
		changed = true
	}
	if want.AuthProvider != "" && u.AuthProvider() != want.AuthProvider {
		u.SetAuthProvider(want.AuthProvider)
		if want.AuthProvider == models.ProviderGoogle {
			u.SetEmail(u.ID())
		}
		changed = true
	}
	if !changed {
		return u, nil
	}
	u.SetUpdatedAt(c.now())
	if err := c.users.Update(u); err != nil {
		return nil, err
	}
	return u, nil
}

// ListUsers returns users in creation order, optionally filtered by role and status.
func (c *Catalog) ListUsers(role, status string) ([]*models.User, error) {
	return c.users.List(map[string]any{"role": role, "status": status})
}

// DisableUser marks a user disabled. Their ratings stay.
func (c *Catalog) DisableUser(id string) error {
	u, err := c.users.Get(id)
	if err != nil {
		return err
	}
	u.SetStatus(models.StatusDisabled)
	u.SetUpdatedAt(c.now())
	return c.users.Update(u)
}

// DeleteUser removes a user and every rating they made. Admins, the configured admin and the caller cannot be deleted.
// It returns the number of ratings removed.
func (c *Catalog) DeleteUser(id, adminID, callerID string) (int, error) {
	u, err := c.users.Get(id)
	if err != nil {
		return 0, err
	}
	if u.IsProtected(adminID, callerID) {
		return 0, fmt.Errorf("%w: user %s is protected", shared.ErrInvalidArgument, id)
	}

	removed, err := c.entries.RemoveRatings(u.RatingKey())
	if err != nil {
		return 0, err
	}
	if err := c.users.Purge(id); err != nil {
		return removed, err
	}
	c.logger.Info("user deleted", "user", id, "ratings", removed)
	return removed, nil
}

// Rate stores userID's rating of videoID, creating the user on first use.
func (c *Catalog) Rate(videoID, userID string, in models.RatingInput) (models.Rating, error) {
	u, err := c.EnsureUser(UserSpec{ID: userID})
	if err != nil {
		return models.Rating{}, err
	}
	if !u.IsActive() {
		return models.Rating{}, fmt.Errorf("%w: user %s is disabled", shared.ErrInvalidArgument, userID)
	}
	if in.Genre != "" && !strings.EqualFold(in.Genre, models.GenreUnknown) && models.NormalizeGenre(in.Genre) == models.GenreUnknown {
		return models.Rating{}, fmt.Errorf("%w: unknown genre %q", shared.ErrInvalidArgument, in.Genre)
	}
	if in.Genre != "" {
		in.Genre = models.NormalizeGenre(in.Genre)
	}

	e, err := c.entries.Get(videoID)
	if err != nil {
		return models.Rating{}, err
	}

	r := e.Rate(u, in, c.now().UTC())
	if err := c.entries.SetRating(videoID, u.RatingKey(), r); err != nil {
		return models.Rating{}, err
	}
	return r, nil
}

// List returns the entries matching f from userID's point of view. An empty userID sees every entry as unrated.
func (c *Catalog) List(userID string, f models.Filter) ([]*models.Entry, *models.User, error) {
	u, err := c.viewer(userID)
	if err != nil {
		return nil, nil, err
	}

	entries, err := c.entries.List(nil)
	if err != nil {
		return nil, nil, err
	}
	return models.FilterEntries(entries, f, u), u, nil
}

// Stats summarizes the whole catalog from userID's point of view.
func (c *Catalog) Stats(userID string) (models.Stats, error) {
	u, err := c.viewer(userID)
	if err != nil {
		return models.Stats{}, err
	}
	entries, err := c.entries.List(nil)
	if err != nil {
		return models.Stats{}, err
	}
	return models.Summarize(entries, u), nil
}

// viewer resolves the user whose ratings apply. Unknown users see the catalog unrated rather than being created.
func (c *Catalog) viewer(userID string) (*models.User, error) {
	if userID == "" {
		return models.NewUser("anonymous", models.ProviderBasic), nil
	}
	u, err := c.users.Get(userID)
	if errors.Is(err, shared.ErrNotFound) {
		return models.NewUser(userID, ""), nil
	}
	return u, err
}

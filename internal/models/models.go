// package models defines the data model for the prism music catalog
package models

import (
	"time"
)

// Model defines the base interface for all persistent models in the catalog.
// Implementations are [Entry] and [User].
type Model interface {
	ID() string           // ID returns the unique identifier for this model
	CreatedAt() time.Time // CreatedAt returns when this model was created
	UpdatedAt() time.Time // UpdatedAt returns when this model was last updated
	Validate() error      // Validate checks if the model's data is valid and returns an error if not
}

// Repository defines the interface for data access operations.
// Implementations handle database interactions for specific model types.
type Repository[T Model] interface {
	Create(model T) error                      // Create inserts a new model into the database
	Get(id string) (T, error)                  // Get retrieves a model by its ID
	Update(model T) error                      // Update modifies an existing model in the database
	Delete(id string) error                    // Delete removes a model from the database by its ID
	List(criteria map[string]any) ([]T, error) // List retrieves all models matching the given criteria
}

// EntryStore persists catalog entries and their per-user ratings.
//
// List understands the criteria keys "ai_model_not" (string), "incomplete" (bool: missing artist, track or ai_model),
// "missing_rand" (bool) and "source" (string).
type EntryStore interface {
	Repository[*Entry]
	Exists(videoID string) (bool, error)
	SetRating(videoID, ratingKey string, rating Rating) error
	// RemoveRatings deletes every rating stored under ratingKey and reports how many were removed.
	RemoveRatings(ratingKey string) (int, error)
}

// UserStore persists catalog users.
//
// List understands the criteria keys "role" and "status".
type UserStore interface {
	Repository[*User]
	// Purge removes the user record permanently.
	Purge(id string) error
}

// Package models defines the catalog's domain entities and persistence interfaces.
//
// Persistent entities:
//   - [Entry] : one catalogued YouTube video with its classification and per-user [Rating] map
//   - [User] : someone who rates entries, keyed by email or username with a stable [RatingKey]
//
// Entries may also carry a [LegacyRating], the single top-level rating older catalogs used. Admins see it until they
// rate the entry themselves, and the migrate-ratings maintenance task folds it into the admin's rating map.
//
// [Filter] and [FilterEntries] implement the user-specific listing used by list, export and the rating view.
// The [Repository] interface defines standard CRUD operations; [EntryStore] and [UserStore] extend it.
package models

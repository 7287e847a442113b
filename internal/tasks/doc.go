// Package tasks runs prism's long operations with real-time progress reporting.
//
// # Playlists
//
// [PlaylistWriter] owns every write to YouTube. It creates a playlist, inserts videos one at a time, and sorts
// failures into skip, retry and abort (see the type's documentation). An aborted playlist is deleted, so a rerun
// starts clean.
//
// [PlaylistEngine] drives the writer over Substack posts:
//
//  1. Posts already in the progress file are skipped without being fetched
//  2. Every other post is fetched and scanned for video IDs
//  3. A playlist named after the post is written
//  4. The post is recorded only once its playlist is complete
//
// # Catalog
//
// [Ingester] adds videos to the catalog from posts ([Ingester.Scrape]), arbitrary pages ([Ingester.Scan]),
// playlists and explicit IDs. [Catalog] covers everything that needs only the local store: users, ratings,
// filtering and the maintenance jobs.
//
// # Progress Reporting
//
// All operations use non-blocking channels for progress updates.
//
// The [ProgressUpdate] struct contains phase, step counters, messages, and optional data for advanced UI rendering.
// Updates use select with default to prevent blocking, and a nil channel disables them.
package tasks

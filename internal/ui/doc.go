// Package ui implements the interactive rating interface using bubbletea's Elm architecture.
//
// The TUI has two views:
//  1. [ListView] : browse the filtered catalog and pick an entry
//  2. [RateView] : set music and video scores, favorite and rejected flags and a genre, then save
//
// The [Model] implements bubbletea's Init/Update/View pattern, receiving results of catalog calls through the [Msg]
// union type. Ratings are saved through the [Catalog] interface, which the tasks package's Catalog satisfies, and the
// list is reloaded afterwards so filters and the viewer's rating key stay current.
//
// Keyboard navigation uses vim-style bindings with contextual help displayed via charmbracelet/bubbles/help.
package ui

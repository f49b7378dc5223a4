// Package http serves the read-only selector API.
//
// Endpoints expose registry health and statistics, the semantic index,
// conflict and dependency reports, and plan resolution. Nothing here
// mutates configuration; files change on disk and the watcher picks
// them up.
package http

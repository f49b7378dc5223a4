// Package inheritance resolves the ancestor chain of a configuration file
// and merges its cascading defaults and strategy templates.
//
// The parent of a file is its explicit "inherits" target when set, and
// otherwise the nearest directory marker (_context.yaml) found walking
// upward, bounded by the root that contains the file. A marker file looks
// for its parent starting one directory above its own.
//
// Cycle detection walks the parent relation iteratively over an owned
// visited set and completes before any ancestor is loaded.
//
// Merge order is farthest ancestor, then nearer ancestors, then the file
// itself. Only explicitly set fields override. Same-name templates nearer
// the file shadow farther ones and record a warning.
package inheritance

// Package paths describes the on-disk layout of a selector configuration tree.
//
// # Directory Structure
//
//	<site-root>/
//	  ├── _context.yaml   (optional marker: site-wide defaults and templates)
//	  ├── main/           (selectors used by production scrapers)
//	  │   └── search/
//	  │       ├── _context.yaml
//	  │       └── results.yaml
//	  ├── fixture/        (selectors exercised against captured pages)
//	  └── match/          (selectors for matching/diffing runs)
//
// Buckets are conventional, not required: discovery searches the whole root
// recursively. Marker files may appear at any level and supply inherited
// defaults for everything below them.
//
// # Usage
//
//	layout := paths.DefaultLayout()
//	if layout.IsMarker(p) {
//	    // directory defaults
//	}
//	bucket := paths.BucketOf(root, p) // "main", "fixture", "match" or ""
package paths

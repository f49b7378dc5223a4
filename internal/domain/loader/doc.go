// Package loader reads selector configuration files from disk and parses
// them into typed entities.
//
// Parsing happens once, at this boundary. Raw YAML is decoded into private
// document structs with goccy/go-yaml, converted into selector types, and
// handed to the validator. Shape problems (a string where a mapping was
// expected, an unknown key in strict mode) become SchemaValidationError
// findings alongside schema violations, so a broken file is reported in
// one pass.
//
// Pipeline for a single file:
//
//	stat -> size / extension limits      FileAccessError
//	read -> empty, binary, non-UTF-8     LoadingError
//	YAML syntax, duplicate keys          LoadingError
//	typed decode + conversion + rules    SchemaValidationError
//
// Trees are discovered with fastwalk, filtered with doublestar patterns and
// loaded in parallel with a bounded errgroup; one file's failure never
// aborts its siblings.
package loader

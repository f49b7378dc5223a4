// Package selector defines the typed entities of the selector configuration
// engine and its error taxonomy.
//
// A configuration file is parsed once, at the load boundary, into a
// SelectorConfiguration. Everything downstream (validation, inheritance,
// indexing, resolution) works on these types and never on raw YAML.
//
// Entities:
//   - SelectorConfiguration: one loaded file
//   - SemanticSelector: a named, context-scoped element description
//   - StrategyDefinition: Inline or TemplateRef location strategy
//   - StrategyTemplate: reusable strategy that definitions may reference
//   - ContextDefaults, ValidationRule: cascading defaults (pointer fields, nil = unset)
//   - InheritanceChain, IndexEntry, ResolutionContext, SelectorResult
//
// Errors:
//
//	ErrConfiguration
//	  ├── *LoadingError            missing, unreadable, empty or malformed file
//	  ├── *SchemaValidationError   one or more rule violations
//	  ├── *InheritanceError        circular parent reference
//	  └── *FileAccessError         permission, size limit, extension
//	*NotFoundError, *DependencyError  resolution failures
//
// Every configuration error satisfies errors.Is(err, ErrConfiguration).
package selector

// Package validation checks parsed selector configurations against the
// schema rules of the engine.
//
// Validate never fails fast: every violation in a file is collected in one
// pass so the file can be fixed in a single edit. Findings are split into
// errors, which reject the file, and warnings, which are reported but
// accepted. In strict mode warnings are promoted to errors.
//
// CSS selectors are compiled with cascadia and XPath expressions with
// antchfx/xpath. A compile failure is a warning: browser engines accept
// dialects those parsers do not.
package validation

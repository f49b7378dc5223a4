// Package resolver turns a selector name and the caller's page context into
// a confidence-ranked resolution plan. Executing the plan against a page is
// left to the caller.
package resolver

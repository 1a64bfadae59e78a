// Package types contains the shared domain types for paratracker.
//
// It defines the search result shape returned by the search engine and
// surfaced by both the HTTP API and the CLI, along with the error values
// used to distinguish caller mistakes from provider and datastore
// failures. The package has no dependencies on internal packages so it
// can be imported from anywhere in the tree.
package types

// Package domain contains the core data structures and domain logic for the application.
package domain

// Dependency is one entry of a package's declared dependency list.
// Kind is the DESCRIPTION field the entry came from (Depends, Imports,
// Suggests, LinkingTo or Enhances).
type Dependency struct {
	Name string `json:"name"`
	Kind string `json:"kind"`
}

// PackageRecord holds the locally-available metadata of one audited package.
// It is immutable once fetched: checks read it, nothing writes to it.
type PackageRecord struct {
	Name            string       `json:"name"`
	URL             string       `json:"url"`
	BugReports      string       `json:"bug_reports"`
	RoxygenNote     string       `json:"roxygen_note"`
	VignetteBuilder string       `json:"vignette_builder"`
	Dependencies    []Dependency `json:"dependencies"`
}

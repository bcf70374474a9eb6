package domain

import (
	"regexp"
	"strings"
)

// RepositoryRef identifies a GitHub repository as owner/name.
type RepositoryRef struct {
	Owner string `json:"owner"`
	Name  string `json:"name"`
}

func (r RepositoryRef) String() string {
	return r.Owner + "/" + r.Name
}

// GitHub owners allow hyphens and repo names allow dots, so the character
// class is wider than plain word characters (r-lib/testthat, Rdatatable/data.table).
var (
	githubURLPattern        = regexp.MustCompile(`https://github\.com/([\w.-]+)/([\w.-]+)`)
	githubBugReportsPattern = regexp.MustCompile(`https://github\.com/([\w.-]+)/([\w.-]+)/issues`)
)

// LocateRepository extracts a RepositoryRef from a package's free-text
// metadata. The URL field is scanned first for a GitHub repository URL; if it
// yields nothing, BugReports is scanned for the issue-tracker form. Only the
// first occurrence in a field is considered, so multi-valued URL fields
// resolve to their leading entry. The second return value is false when
// neither field matches.
//
// LocateRepository is pure: same record in, same ref out, no network access.
func LocateRepository(p *PackageRecord) (RepositoryRef, bool) {
	if m := githubURLPattern.FindStringSubmatch(p.URL); m != nil {
		return RepositoryRef{Owner: m[1], Name: trimRepoName(m[2])}, true
	}
	if m := githubBugReportsPattern.FindStringSubmatch(p.BugReports); m != nil {
		return RepositoryRef{Owner: m[1], Name: m[2]}, true
	}
	return RepositoryRef{}, false
}

// trimRepoName strips what the greedy character class over-captures: a
// trailing ".git" from clone addresses and sentence punctuation when the
// URL sits inside prose ("see https://github.com/foo/bar."). GitHub repo
// names cannot end in a dot, so trimming is always safe.
func trimRepoName(name string) string {
	name = strings.TrimRight(name, ".")
	return strings.TrimSuffix(name, ".git")
}

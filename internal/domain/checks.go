package domain

import "strings"

// Check identifiers. The full vocabulary is fixed: five descriptor checks
// computed from the PackageRecord alone, four repository checks that need a
// probe of the source repository.
const (
	CheckGitHubURL     = "has_github_url"
	CheckRoxygen       = "uses_roxygen"
	CheckKnitrVignette = "has_knitr_vignette"
	CheckTesting       = "uses_testing_framework"
	CheckNoDeprecated  = "has_no_deprecated_dependency"

	CheckRmdReadme = "has_rmd_readme"
	CheckMdLicense = "has_md_license"
	CheckPkgdown   = "uses_pkgdown"
	CheckGHA       = "uses_gha"
)

// DescriptorCheckNames and RepositoryCheckNames fix the order checks are
// reported in. AllCheckNames is their concatenation; every result vector
// carries exactly these keys.
var (
	DescriptorCheckNames = []string{
		CheckGitHubURL,
		CheckRoxygen,
		CheckKnitrVignette,
		CheckTesting,
		CheckNoDeprecated,
	}
	RepositoryCheckNames = []string{
		CheckRmdReadme,
		CheckMdLicense,
		CheckPkgdown,
		CheckGHA,
	}
	AllCheckNames = append(append([]string{}, DescriptorCheckNames...), RepositoryCheckNames...)
)

// testingFrameworks are the packages whose presence in the dependency list
// counts as using a testing framework.
var testingFrameworks = map[string]struct{}{
	"testthat": {},
	"testit":   {},
	"unitizer": {},
	"RUnit":    {},
	"tinytest": {},
}

// deprecatedPackages are dependencies the community has moved away from.
var deprecatedPackages = map[string]struct{}{
	"RUnit":    {},
	"XML":      {},
	"RCurl":    {},
	"plyr":     {},
	"reshape2": {},
}

const githubPrefix = "https://github.com/"

// DescriptorChecks evaluates the five metadata-only predicates for p.
// Each predicate is total: missing fields evaluate to false, an empty
// dependency list trivially satisfies the no-deprecated check.
func DescriptorChecks(p *PackageRecord) CheckResult {
	r := CheckResult{
		CheckGitHubURL:     hasGitHubURL(p),
		CheckRoxygen:       p.RoxygenNote != "",
		CheckKnitrVignette: strings.Contains(p.VignetteBuilder, "knitr"),
		CheckTesting:       false,
		CheckNoDeprecated:  true,
	}
	for _, d := range p.Dependencies {
		if _, ok := testingFrameworks[d.Name]; ok {
			r[CheckTesting] = true
		}
		if _, ok := deprecatedPackages[d.Name]; ok {
			r[CheckNoDeprecated] = false
		}
	}
	return r
}

// hasGitHubURL reports whether URL or BugReports starts with the GitHub
// prefix. DESCRIPTION URL fields are routinely comma or newline separated,
// so leading whitespace is trimmed before the prefix test.
func hasGitHubURL(p *PackageRecord) bool {
	return strings.HasPrefix(strings.TrimSpace(p.URL), githubPrefix) ||
		strings.HasPrefix(strings.TrimSpace(p.BugReports), githubPrefix)
}

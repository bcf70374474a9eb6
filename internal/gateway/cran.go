package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"sort"
	"time"

	"github.com/charmbracelet/log"

	"github.com/ctvkit/ctvaudit/internal/domain"
)

// Registry resolves task views and package metadata.
type Registry interface {
	// ResolveTaskView returns the package names a task view lists, in
	// order of first appearance. An unknown view is a fatal error for
	// the run.
	ResolveTaskView(ctx context.Context, view string) ([]string, error)
	// FetchPackage returns one package's metadata record. Failures come
	// back as a *FetchError so callers can report them per package
	// without aborting the run.
	FetchPackage(ctx context.Context, name string) (*domain.PackageRecord, error)
}

// FetchError reports that a single package's metadata could not be
// retrieved. The rest of the run is unaffected.
type FetchError struct {
	Package string
	Err     error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch metadata for %s: %v", e.Package, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

const (
	defaultTaskViewsURL = "https://raw.githubusercontent.com/cran-task-views"
	defaultCrandbURL    = "https://crandb.r-pkg.org"
)

// taskViewPkgPattern matches the pkg("name") references task-view Markdown
// uses, with or without a priority argument.
var taskViewPkgPattern = regexp.MustCompile(`pkg\("([a-zA-Z][\w.]*)"`)

// CRANGateway is the concrete Registry. Task views come from the
// cran-task-views GitHub org's raw Markdown, package metadata from the
// crandb JSON API.
type CRANGateway struct {
	httpClient   *http.Client
	taskViewsURL string
	crandbURL    string
	logger       *log.Logger
}

// NewCRANGateway creates a gateway against the public CRAN endpoints.
func NewCRANGateway(logger *log.Logger) *CRANGateway {
	return &CRANGateway{
		httpClient:   &http.Client{Timeout: 30 * time.Second},
		taskViewsURL: defaultTaskViewsURL,
		crandbURL:    defaultCrandbURL,
		logger:       logger,
	}
}

func (g *CRANGateway) ResolveTaskView(ctx context.Context, view string) ([]string, error) {
	url := fmt.Sprintf("%s/%s/main/%s.md", g.taskViewsURL, view, view)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create task view request: %w", err)
	}

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch task view %q: %w", view, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch task view %q: unexpected status %d", view, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read task view %q: %w", view, err)
	}

	names := extractPackageNames(string(body))
	if len(names) == 0 {
		return nil, fmt.Errorf("task view %q lists no packages", view)
	}
	g.logger.Debug("resolved task view", "view", view, "packages", len(names))
	return names, nil
}

// extractPackageNames pulls pkg("...") references out of task-view
// Markdown, deduplicated in order of first appearance.
func extractPackageNames(markdown string) []string {
	seen := make(map[string]struct{})
	var names []string
	for _, m := range taskViewPkgPattern.FindAllStringSubmatch(markdown, -1) {
		name := m[1]
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		names = append(names, name)
	}
	return names
}

// crandbRecord mirrors the DESCRIPTION-derived fields of the crandb JSON
// document. Dependency fields map package name to version constraint.
type crandbRecord struct {
	Package         string            `json:"Package"`
	URL             string            `json:"URL"`
	BugReports      string            `json:"BugReports"`
	RoxygenNote     string            `json:"RoxygenNote"`
	VignetteBuilder string            `json:"VignetteBuilder"`
	Depends         map[string]string `json:"Depends"`
	Imports         map[string]string `json:"Imports"`
	Suggests        map[string]string `json:"Suggests"`
	LinkingTo       map[string]string `json:"LinkingTo"`
	Enhances        map[string]string `json:"Enhances"`
}

func (g *CRANGateway) FetchPackage(ctx context.Context, name string) (*domain.PackageRecord, error) {
	url := fmt.Sprintf("%s/%s", g.crandbURL, name)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &FetchError{Package: name, Err: err}
	}

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, &FetchError{Package: name, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &FetchError{Package: name, Err: fmt.Errorf("unexpected status %d", resp.StatusCode)}
	}

	var rec crandbRecord
	if err := json.NewDecoder(resp.Body).Decode(&rec); err != nil {
		return nil, &FetchError{Package: name, Err: fmt.Errorf("decode response: %w", err)}
	}

	return &domain.PackageRecord{
		Name:            name,
		URL:             rec.URL,
		BugReports:      rec.BugReports,
		RoxygenNote:     rec.RoxygenNote,
		VignetteBuilder: rec.VignetteBuilder,
		Dependencies:    flattenDependencies(&rec),
	}, nil
}

// flattenDependencies turns the per-kind dependency maps into one ordered
// list. JSON object keys carry no order, so names are sorted within each
// kind to keep records deterministic across fetches.
func flattenDependencies(rec *crandbRecord) []domain.Dependency {
	var deps []domain.Dependency
	for _, kind := range []struct {
		name string
		m    map[string]string
	}{
		{"Depends", rec.Depends},
		{"Imports", rec.Imports},
		{"Suggests", rec.Suggests},
		{"LinkingTo", rec.LinkingTo},
		{"Enhances", rec.Enhances},
	} {
		names := make([]string, 0, len(kind.m))
		for depName := range kind.m {
			if depName == "R" {
				continue // R version constraint, not a package
			}
			names = append(names, depName)
		}
		sort.Strings(names)
		for _, depName := range names {
			deps = append(deps, domain.Dependency{Name: depName, Kind: kind.name})
		}
	}
	return deps
}

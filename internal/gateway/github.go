// Package gateway provides gateways to the external services the audit
// depends on: the GitHub API for repository structure probes and the CRAN
// registry for task views and package metadata.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/go-github/v62/github"
	"github.com/shurcooL/githubv4"
	"golang.org/x/oauth2"

	"github.com/gofri/go-github-ratelimit/github_ratelimit"

	"github.com/ctvkit/ctvaudit/internal/domain"
)

// Prober answers repository structure questions for the repository check set.
type Prober interface {
	// Resolve canonicalizes a located repository reference, following
	// renames. The second return value is false when the repository is
	// unreachable (deleted, private, never existed); callers should then
	// skip file probes entirely.
	Resolve(ctx context.Context, ref domain.RepositoryRef) (domain.RepositoryRef, bool)
	// FileExists reports whether path exists on the repository's default
	// branch. It never returns an error: anything short of a confirmed
	// presence is false.
	FileExists(ctx context.Context, ref domain.RepositoryRef, path string) bool
	// AnyFileExists is the logical OR of FileExists over paths,
	// short-circuiting on the first hit.
	AnyFileExists(ctx context.Context, ref domain.RepositoryRef, paths ...string) bool
}

// probe retry bounds for rate-limit responses. After the attempts are
// exhausted the probe degrades to "does not exist".
const (
	probeRetryAttempts = 3
	probeRetryDelay    = 2 * time.Second
)

// GitHubProber is the concrete Prober backed by the GitHub contents API.
// Results are cached per (repository, path) for the lifetime of the prober,
// so auditing many packages from the same repository never re-issues an
// identical probe.
type GitHubProber struct {
	restClient    *github.Client
	graphqlClient *githubv4.Client
	logger        *log.Logger
	retryDelay    time.Duration

	mu       sync.Mutex
	probes   map[string]bool
	resolved map[domain.RepositoryRef]resolution

	failures atomic.Int64
}

type resolution struct {
	ref domain.RepositoryRef
	ok  bool
}

// NewGitHubProber creates a prober. The token is optional: without one the
// prober runs unauthenticated against the REST API (low rate ceiling) and
// skips GraphQL canonicalization, which requires credentials.
func NewGitHubProber(token string, logger *log.Logger) (*GitHubProber, error) {
	rateLimitWaiter, err := github_ratelimit.NewRateLimitWaiter(nil, github_ratelimit.WithSingleSleepLimit(5*time.Minute, nil))
	if err != nil {
		return nil, fmt.Errorf("failed to create rate limit waiter: %w", err)
	}

	httpClient := &http.Client{Transport: rateLimitWaiter}
	var graphqlClient *githubv4.Client
	if token != "" {
		ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
		httpClient = &http.Client{
			Transport: &oauth2.Transport{
				Base:   rateLimitWaiter,
				Source: ts,
			},
		}
		graphqlClient = githubv4.NewClient(httpClient)
	}

	return &GitHubProber{
		restClient:    github.NewClient(httpClient),
		graphqlClient: graphqlClient,
		logger:        logger,
		retryDelay:    probeRetryDelay,
		probes:        make(map[string]bool),
		resolved:      make(map[domain.RepositoryRef]resolution),
	}, nil
}

// Failures reports how many probes fell back to false for reasons other
// than a confirmed 404 (network errors, exhausted retries, unexpected
// statuses). A large number relative to the probe count means the run's
// negatives are not trustworthy.
func (p *GitHubProber) Failures() int64 {
	return p.failures.Load()
}

func (p *GitHubProber) Resolve(ctx context.Context, ref domain.RepositoryRef) (domain.RepositoryRef, bool) {
	p.mu.Lock()
	if res, ok := p.resolved[ref]; ok {
		p.mu.Unlock()
		return res.ref, res.ok
	}
	p.mu.Unlock()

	res := p.resolveRemote(ctx, ref)

	p.mu.Lock()
	p.resolved[ref] = res
	p.mu.Unlock()
	return res.ref, res.ok
}

func (p *GitHubProber) resolveRemote(ctx context.Context, ref domain.RepositoryRef) resolution {
	if p.graphqlClient == nil {
		// Unauthenticated: the GraphQL endpoint rejects anonymous queries,
		// so take the located reference at face value and let the REST
		// probes 404 if it is stale.
		return resolution{ref: ref, ok: true}
	}

	var q struct {
		Repository struct {
			NameWithOwner githubv4.String
		} `graphql:"repository(owner: $owner, name: $name)"`
	}
	variables := map[string]interface{}{
		"owner": githubv4.String(ref.Owner),
		"name":  githubv4.String(ref.Name),
	}
	if err := p.graphqlClient.Query(ctx, &q, variables); err != nil {
		if strings.Contains(err.Error(), "Could not resolve to a Repository") {
			p.logger.Debug("repository unreachable", "repo", ref.String())
			return resolution{ok: false}
		}
		// Transient GraphQL failure: keep the located reference and let
		// the REST probes decide.
		p.logger.Warn("repository resolution failed", "repo", ref.String(), "err", err)
		return resolution{ref: ref, ok: true}
	}

	canonical := ref
	if owner, name, found := strings.Cut(string(q.Repository.NameWithOwner), "/"); found && owner != "" && name != "" {
		canonical = domain.RepositoryRef{Owner: owner, Name: name}
	}
	if canonical != ref {
		p.logger.Debug("repository renamed", "from", ref.String(), "to", canonical.String())
	}
	return resolution{ref: canonical, ok: true}
}

func (p *GitHubProber) FileExists(ctx context.Context, ref domain.RepositoryRef, path string) bool {
	key := ref.String() + ":" + path

	p.mu.Lock()
	if exists, ok := p.probes[key]; ok {
		p.mu.Unlock()
		return exists
	}
	p.mu.Unlock()

	exists := p.probeRemote(ctx, ref, path)

	// A concurrent probe may fill the same key first; both writes carry
	// the same answer, so the last one wins harmlessly.
	p.mu.Lock()
	p.probes[key] = exists
	p.mu.Unlock()
	return exists
}

func (p *GitHubProber) AnyFileExists(ctx context.Context, ref domain.RepositoryRef, paths ...string) bool {
	for _, path := range paths {
		if p.FileExists(ctx, ref, path) {
			return true
		}
	}
	return false
}

// probeRemote issues the contents-API call for one (repo, path), retrying
// rate-limit responses a bounded number of times before degrading to false.
func (p *GitHubProber) probeRemote(ctx context.Context, ref domain.RepositoryRef, path string) bool {
	delay := p.retryDelay
	for attempt := 1; ; attempt++ {
		_, _, resp, err := p.restClient.Repositories.GetContents(ctx, ref.Owner, ref.Name, path, nil)
		if err == nil {
			return true
		}

		if resp != nil && resp.StatusCode == http.StatusNotFound {
			p.logger.Debug("path absent", "repo", ref.String(), "path", path)
			return false
		}

		if isRateLimited(err) && attempt < probeRetryAttempts {
			p.logger.Warn("rate limited, backing off", "repo", ref.String(), "path", path, "attempt", attempt)
			select {
			case <-ctx.Done():
				p.failures.Add(1)
				return false
			case <-time.After(delay):
				delay *= 2
			}
			continue
		}

		// Not a confirmed absence: network error, auth problem, retries
		// exhausted. Score as false but keep it distinguishable from a 404.
		p.logger.Warn("probe failed", "repo", ref.String(), "path", path, "err", err)
		p.failures.Add(1)
		return false
	}
}

func isRateLimited(err error) bool {
	var rateErr *github.RateLimitError
	var abuseErr *github.AbuseRateLimitError
	return errors.As(err, &rateErr) || errors.As(err, &abuseErr)
}

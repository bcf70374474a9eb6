// Package usecase contains the business logic of the application.
package usecase

import (
	"context"
	"sort"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/montanaflynn/stats"
	"golang.org/x/sync/errgroup"

	"github.com/ctvkit/ctvaudit/internal/domain"
	"github.com/ctvkit/ctvaudit/internal/gateway"
)

// Paths probed by the repository check set.
var (
	readmePath    = "README.Rmd"
	licensePath   = "LICENSE.md"
	pkgdownPaths  = []string{"_pkgdown.yml", "_pkgdown.yaml", "pkgdown/pkgdown.yml"}
	workflowsPath = ".github/workflows"
)

const defaultConcurrency = 8

// PackageFailure records one package whose metadata could not be fetched.
// The package is excluded from the check matrix but the run continues.
type PackageFailure struct {
	Package string `json:"package"`
	Reason  string `json:"reason"`
}

// ScoreSummary describes the distribution of totals across the audited
// packages.
type ScoreSummary struct {
	Packages      int     `json:"packages"`
	MeanTotal     float64 `json:"mean_total"`
	MedianTotal   float64 `json:"median_total"`
	FirstQuartile float64 `json:"first_quartile"`
	ThirdQuartile float64 `json:"third_quartile"`
}

// Report is the full outcome of auditing one task view.
type Report struct {
	View          string            `json:"view"`
	Rows          []domain.ScoreRow `json:"rows"`
	PassCounts    map[string]int    `json:"pass_counts"`
	Summary       ScoreSummary      `json:"summary"`
	FetchErrors   []PackageFailure  `json:"fetch_errors,omitempty"`
	ProbeFailures int64             `json:"probe_failures"`
}

// Auditor is the use case that scores a task view's packages against the
// best-practice check set. It orchestrates metadata fetching, repository
// probing and aggregation.
type Auditor struct {
	registry    gateway.Registry
	prober      gateway.Prober
	logger      *log.Logger
	concurrency int
}

// NewAuditor creates an Auditor. concurrency bounds the number of packages
// audited in parallel; values below one fall back to the default.
func NewAuditor(registry gateway.Registry, prober gateway.Prober, logger *log.Logger, concurrency int) *Auditor {
	if concurrency < 1 {
		concurrency = defaultConcurrency
	}
	return &Auditor{
		registry:    registry,
		prober:      prober,
		logger:      logger,
		concurrency: concurrency,
	}
}

// Audit resolves the named task view and scores every package it lists.
// A task view that cannot be resolved fails the run; a package whose
// metadata cannot be fetched is reported in Report.FetchErrors and skipped.
func (a *Auditor) Audit(ctx context.Context, view string) (*Report, error) {
	a.logger.Info("resolving task view", "view", view)
	names, err := a.registry.ResolveTaskView(ctx, view)
	if err != nil {
		return nil, err
	}
	a.logger.Info("auditing packages", "count", len(names))

	var (
		mu       sync.Mutex
		rows     []domain.ScoreRow
		failures []PackageFailure
	)

	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(a.concurrency)
	for _, name := range names {
		name := name // per-iteration copy; go directive is below 1.22
		eg.Go(func() error {
			rec, err := a.registry.FetchPackage(egCtx, name)
			if err != nil {
				a.logger.Warn("metadata fetch failed", "package", name, "err", err)
				mu.Lock()
				failures = append(failures, PackageFailure{Package: name, Reason: err.Error()})
				mu.Unlock()
				return nil
			}

			row := a.auditPackage(egCtx, rec)

			mu.Lock()
			rows = append(rows, row)
			mu.Unlock()
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	domain.RankRows(rows)
	sort.Slice(failures, func(i, j int) bool {
		return failures[i].Package < failures[j].Package
	})

	report := &Report{
		View:        view,
		Rows:        rows,
		PassCounts:  domain.PassCounts(rows),
		Summary:     summarize(rows),
		FetchErrors: failures,
	}
	if counter, ok := a.prober.(interface{ Failures() int64 }); ok {
		report.ProbeFailures = counter.Failures()
	}

	a.logger.Info("audit complete", "scored", len(rows), "skipped", len(failures))
	return report, nil
}

// auditPackage evaluates all nine checks for one package. The result
// always carries the full check vocabulary: packages without a reachable
// repository score false on the repository checks rather than dropping
// them, so totals stay comparable across the whole view.
func (a *Auditor) auditPackage(ctx context.Context, rec *domain.PackageRecord) domain.ScoreRow {
	checks := domain.DescriptorChecks(rec)
	for _, name := range domain.RepositoryCheckNames {
		checks[name] = false
	}

	if ref, ok := domain.LocateRepository(rec); ok {
		if ref, ok = a.prober.Resolve(ctx, ref); ok {
			checks[domain.CheckRmdReadme] = a.prober.FileExists(ctx, ref, readmePath)
			checks[domain.CheckMdLicense] = a.prober.FileExists(ctx, ref, licensePath)
			checks[domain.CheckPkgdown] = a.prober.AnyFileExists(ctx, ref, pkgdownPaths...)
			checks[domain.CheckGHA] = a.prober.FileExists(ctx, ref, workflowsPath)
		}
	}

	return domain.NewScoreRow(rec.Name, checks)
}

// summarize computes distribution statistics over the row totals.
func summarize(rows []domain.ScoreRow) ScoreSummary {
	summary := ScoreSummary{Packages: len(rows)}
	if len(rows) == 0 {
		return summary
	}

	totals := make([]float64, len(rows))
	for i, row := range rows {
		totals[i] = float64(row.Total)
	}
	summary.MeanTotal, _ = stats.Mean(totals)
	summary.MedianTotal, _ = stats.Median(totals)
	summary.FirstQuartile, _ = stats.Percentile(totals, 25)
	summary.ThirdQuartile, _ = stats.Percentile(totals, 75)
	return summary
}

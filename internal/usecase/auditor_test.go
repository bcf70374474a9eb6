package usecase

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/ctvkit/ctvaudit/internal/domain"
	"github.com/ctvkit/ctvaudit/internal/gateway"
)

// mockRegistry is a mock implementation of the gateway.Registry interface.
type mockRegistry struct {
	mock.Mock
}

func (m *mockRegistry) ResolveTaskView(ctx context.Context, view string) ([]string, error) {
	args := m.Called(ctx, view)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

func (m *mockRegistry) FetchPackage(ctx context.Context, name string) (*domain.PackageRecord, error) {
	args := m.Called(ctx, name)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.PackageRecord), args.Error(1)
}

// mockProber is a mock implementation of the gateway.Prober interface.
type mockProber struct {
	mock.Mock
}

func (m *mockProber) Resolve(ctx context.Context, ref domain.RepositoryRef) (domain.RepositoryRef, bool) {
	args := m.Called(ctx, ref)
	return args.Get(0).(domain.RepositoryRef), args.Bool(1)
}

func (m *mockProber) FileExists(ctx context.Context, ref domain.RepositoryRef, path string) bool {
	args := m.Called(ctx, ref, path)
	return args.Bool(0)
}

func (m *mockProber) AnyFileExists(ctx context.Context, ref domain.RepositoryRef, paths ...string) bool {
	args := m.Called(ctx, ref, paths)
	return args.Bool(0)
}

func discardLogger() *log.Logger {
	return log.New(io.Discard)
}

func TestAuditor_Audit(t *testing.T) {
	compliant := &domain.PackageRecord{
		Name:            "goodpkg",
		URL:             "https://github.com/good/goodpkg",
		RoxygenNote:     "7.3.1",
		VignetteBuilder: "knitr",
		Dependencies:    []domain.Dependency{{Name: "testthat", Kind: "Suggests"}},
	}
	homeless := &domain.PackageRecord{
		Name: "homeless",
		URL:  "https://homeless.example.org",
	}
	goodRef := domain.RepositoryRef{Owner: "good", Name: "goodpkg"}

	ctx := context.Background()
	registry := new(mockRegistry)
	prober := new(mockProber)

	registry.On("ResolveTaskView", mock.Anything, "MachineLearning").Return([]string{"goodpkg", "homeless"}, nil)
	registry.On("FetchPackage", mock.Anything, "goodpkg").Return(compliant, nil)
	registry.On("FetchPackage", mock.Anything, "homeless").Return(homeless, nil)

	prober.On("Resolve", mock.Anything, goodRef).Return(goodRef, true)
	prober.On("FileExists", mock.Anything, goodRef, "README.Rmd").Return(true)
	prober.On("FileExists", mock.Anything, goodRef, "LICENSE.md").Return(false)
	prober.On("FileExists", mock.Anything, goodRef, ".github/workflows").Return(true)
	prober.On("AnyFileExists", mock.Anything, goodRef, pkgdownPaths).Return(true)

	auditor := NewAuditor(registry, prober, discardLogger(), 1)
	report, err := auditor.Audit(ctx, "MachineLearning")

	require.NoError(t, err)
	require.Len(t, report.Rows, 2)

	// Ranking: goodpkg (5 descriptor + 3 repository) above homeless (0).
	assert.Equal(t, "goodpkg", report.Rows[0].Package)
	assert.Equal(t, 8, report.Rows[0].Total)
	// homeless only passes has_no_deprecated_dependency (empty dep list).
	assert.Equal(t, "homeless", report.Rows[1].Package)
	assert.Equal(t, 1, report.Rows[1].Total)

	// Every row carries the full nine-check vocabulary even without a
	// resolvable repository.
	for _, row := range report.Rows {
		assert.Len(t, row.Checks, len(domain.AllCheckNames))
	}
	assert.False(t, report.Rows[1].Checks[domain.CheckRmdReadme])
	assert.False(t, report.Rows[1].Checks[domain.CheckGHA])

	// homeless has no locatable repository, so only goodpkg was resolved.
	prober.AssertNumberOfCalls(t, "Resolve", 1)

	assert.Equal(t, 1, report.PassCounts[domain.CheckGitHubURL])
	assert.Equal(t, 0, report.PassCounts[domain.CheckMdLicense])
	assert.Equal(t, 1, report.PassCounts[domain.CheckRmdReadme])

	assert.Equal(t, 2, report.Summary.Packages)
	assert.InDelta(t, 4.5, report.Summary.MeanTotal, 0.0001)

	registry.AssertExpectations(t)
	prober.AssertExpectations(t)
}

func TestAuditor_AuditTaskViewError(t *testing.T) {
	registry := new(mockRegistry)
	prober := new(mockProber)
	registry.On("ResolveTaskView", mock.Anything, "NoSuchView").Return(nil, errors.New("unexpected status 404"))

	auditor := NewAuditor(registry, prober, discardLogger(), 1)
	report, err := auditor.Audit(context.Background(), "NoSuchView")

	assert.Error(t, err)
	assert.Nil(t, report)
	registry.AssertExpectations(t)
}

// A package whose metadata cannot be fetched is reported and skipped; the
// rest of the run proceeds.
func TestAuditor_AuditFetchErrorSkipsPackage(t *testing.T) {
	ok := &domain.PackageRecord{Name: "okpkg"}

	registry := new(mockRegistry)
	prober := new(mockProber)
	registry.On("ResolveTaskView", mock.Anything, "Databases").Return([]string{"brokenpkg", "okpkg"}, nil)
	registry.On("FetchPackage", mock.Anything, "brokenpkg").Return(nil, &gateway.FetchError{Package: "brokenpkg", Err: errors.New("unexpected status 404")})
	registry.On("FetchPackage", mock.Anything, "okpkg").Return(ok, nil)

	auditor := NewAuditor(registry, prober, discardLogger(), 1)
	report, err := auditor.Audit(context.Background(), "Databases")

	require.NoError(t, err)
	require.Len(t, report.Rows, 1)
	assert.Equal(t, "okpkg", report.Rows[0].Package)
	require.Len(t, report.FetchErrors, 1)
	assert.Equal(t, "brokenpkg", report.FetchErrors[0].Package)
	assert.Contains(t, report.FetchErrors[0].Reason, "404")

	registry.AssertExpectations(t)
}

// An unreachable repository scores false on all repository checks without
// a single file probe.
func TestAuditor_AuditUnreachableRepository(t *testing.T) {
	gone := &domain.PackageRecord{
		Name: "gonepkg",
		URL:  "https://github.com/gone/gonepkg",
	}
	goneRef := domain.RepositoryRef{Owner: "gone", Name: "gonepkg"}

	registry := new(mockRegistry)
	prober := new(mockProber)
	registry.On("ResolveTaskView", mock.Anything, "Databases").Return([]string{"gonepkg"}, nil)
	registry.On("FetchPackage", mock.Anything, "gonepkg").Return(gone, nil)
	prober.On("Resolve", mock.Anything, goneRef).Return(domain.RepositoryRef{}, false)

	auditor := NewAuditor(registry, prober, discardLogger(), 1)
	report, err := auditor.Audit(context.Background(), "Databases")

	require.NoError(t, err)
	require.Len(t, report.Rows, 1)
	for _, name := range domain.RepositoryCheckNames {
		assert.False(t, report.Rows[0].Checks[name])
	}
	prober.AssertNotCalled(t, "FileExists", mock.Anything, mock.Anything, mock.Anything)
	prober.AssertNotCalled(t, "AnyFileExists", mock.Anything, mock.Anything, mock.Anything)
	prober.AssertExpectations(t)
}

// Re-running the auditor over the same inputs yields an identical report.
func TestAuditor_AuditDeterministic(t *testing.T) {
	records := map[string]*domain.PackageRecord{
		"alpha": {Name: "alpha", RoxygenNote: "7.0.0"},
		"beta":  {Name: "beta", RoxygenNote: "7.0.0"},
		"gamma": {Name: "gamma"},
	}

	run := func() *Report {
		registry := new(mockRegistry)
		prober := new(mockProber)
		registry.On("ResolveTaskView", mock.Anything, "Databases").Return([]string{"gamma", "alpha", "beta"}, nil)
		for name, rec := range records {
			registry.On("FetchPackage", mock.Anything, name).Return(rec, nil)
		}

		auditor := NewAuditor(registry, prober, discardLogger(), 3)
		report, err := auditor.Audit(context.Background(), "Databases")
		require.NoError(t, err)
		return report
	}

	first := run()
	second := run()
	assert.Equal(t, first.Rows, second.Rows)
	assert.Equal(t, first.PassCounts, second.PassCounts)
}

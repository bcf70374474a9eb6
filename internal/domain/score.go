package domain

import "sort"

// CheckResult maps a check identifier to its outcome for one package.
// A complete result always carries all nine keys from AllCheckNames;
// repository checks on packages without a resolvable repository are
// recorded as false, never omitted.
type CheckResult map[string]bool

// Total counts the checks that passed. It is always recomputed from the
// map so it can never drift from the underlying results.
func (c CheckResult) Total() int {
	n := 0
	for _, ok := range c {
		if ok {
			n++
		}
	}
	return n
}

// ScoreRow is one package's full check vector plus its derived total.
type ScoreRow struct {
	Package string      `json:"package"`
	Checks  CheckResult `json:"checks"`
	Total   int         `json:"total"`
}

// NewScoreRow builds a ScoreRow with the total derived from checks.
func NewScoreRow(pkg string, checks CheckResult) ScoreRow {
	return ScoreRow{Package: pkg, Checks: checks, Total: checks.Total()}
}

// RankRows sorts rows in place by descending total, ties broken by package
// name ascending so repeated runs over the same matrix order identically.
func RankRows(rows []ScoreRow) {
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Total != rows[j].Total {
			return rows[i].Total > rows[j].Total
		}
		return rows[i].Package < rows[j].Package
	})
}

// PassCounts tallies, per check, how many rows passed it. Every check name
// appears in the result even when no package passes it.
func PassCounts(rows []ScoreRow) map[string]int {
	counts := make(map[string]int, len(AllCheckNames))
	for _, name := range AllCheckNames {
		counts[name] = 0
	}
	for _, row := range rows {
		for name, ok := range row.Checks {
			if ok {
				counts[name]++
			}
		}
	}
	return counts
}

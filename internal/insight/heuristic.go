package insight

import (
	"fmt"
	"strings"

	"github.com/DevByZero/flowlens-api/internal/domain"
)

// Risk thresholds for the deterministic fallback, measured over the total
// line delta and the number of changed files.
const (
	highRiskLines   = 200
	highRiskFiles   = 10
	mediumRiskLines = 50
	mediumRiskFiles = 3
)

// canRunHeuristic reports whether the record carries enough signal for the
// deterministic path. A record with no magnitude data and no title is
// malformed and goes to the retry ledger instead.
func canRunHeuristic(pr *domain.PullRequest) bool {
	return pr.Additions+pr.Deletions > 0 || changedFileCount(pr) > 0 || pr.Title != ""
}

func changedFileCount(pr *domain.PullRequest) int {
	if pr.ChangedFiles > 0 {
		return pr.ChangedFiles
	}

	return len(pr.FilesChanged)
}

// heuristicPayload derives an insight from change magnitude and title
// keywords, without calling the model.
func heuristicPayload(pr *domain.PullRequest) *payload {
	lines := pr.Additions + pr.Deletions
	files := changedFileCount(pr)

	var risk string

	switch {
	case lines > highRiskLines || files > highRiskFiles:
		risk = string(domain.RiskHigh)
	case lines > mediumRiskLines || files > mediumRiskFiles:
		risk = string(domain.RiskMedium)
	default:
		risk = string(domain.RiskLow)
	}

	kind := "change"
	recommendation := "Review the change manually; automated analysis was unavailable."

	title := strings.ToLower(pr.Title)

	switch {
	case strings.Contains(title, "fix"):
		kind = "bug fix"
		recommendation = "Verify the fix with a regression test before merging."
	case strings.Contains(title, "feat"):
		kind = "feature"
		recommendation = "Check that the new behavior is covered by tests and documentation."
	case strings.Contains(title, "refactor"):
		kind = "refactoring"
		recommendation = "Confirm behavior is unchanged; rely on the existing test suite."
	}

	return &payload{
		RiskLevel: risk,
		Summary: fmt.Sprintf("This %s touches %d file(s) with %d changed line(s) (+%d/-%d).",
			kind, files, lines, pr.Additions, pr.Deletions),
		Recommendation: recommendation,
	}
}

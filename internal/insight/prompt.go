package insight

import (
	"fmt"
	"strings"

	"github.com/DevByZero/flowlens-api/internal/domain"
)

// Payload shrink levels. Attempt k uses level min(k, shrinkFilenames) so a
// response that blows the model's input or output budget gets progressively
// smaller on each retry.
const (
	shrinkNone      = iota // full patches, truncated per file
	shrinkTruncate         // aggressively truncated patches
	shrinkFilenames        // no patches, filenames and line counts only
)

const (
	patchLimitFull      = 1500
	patchLimitTruncated = 400
)

const promptHeader = `You are a senior engineer reviewing a pull request.
Analyze the change below and respond with a single JSON object and nothing else:
{"riskLevel": "low|medium|high", "summary": "<one or two sentences>", "recommendation": "<one sentence>"}
`

// buildPrompt renders the enrichment prompt for a pull request at the given
// shrink level.
func buildPrompt(pr *domain.PullRequest, shrink int) string {
	var b strings.Builder

	b.WriteString(promptHeader)
	b.WriteString("\n")
	fmt.Fprintf(&b, "Title: %s\n", pr.Title)

	if pr.Description != "" {
		fmt.Fprintf(&b, "Description: %s\n", clamp(pr.Description, 500))
	}

	fmt.Fprintf(&b, "Author: %s\n", pr.Author)
	fmt.Fprintf(&b, "Branch: %s -> %s\n", pr.BranchName, pr.BaseBranch)
	fmt.Fprintf(&b, "Changed files: %d (+%d/-%d)\n", pr.ChangedFiles, pr.Additions, pr.Deletions)
	b.WriteString("\nFiles:\n")

	for _, file := range pr.FilesChanged {
		fmt.Fprintf(&b, "- %s (%s, +%d/-%d)\n", file.Filename, file.Status, file.Additions, file.Deletions)

		if shrink >= shrinkFilenames || file.Patch == "" {
			continue
		}

		limit := patchLimitFull
		if shrink == shrinkTruncate {
			limit = patchLimitTruncated
		}

		b.WriteString("```diff\n")
		b.WriteString(clamp(file.Patch, limit))
		b.WriteString("\n```\n")
	}

	return b.String()
}

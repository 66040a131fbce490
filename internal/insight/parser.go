package insight

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/DevByZero/flowlens-api/internal/apperrors"
	"github.com/DevByZero/flowlens-api/internal/validation"
)

// payload is the JSON object the model is asked to produce.
type payload struct {
	RiskLevel      string `json:"riskLevel" validate:"required,risk_level"`
	Summary        string `json:"summary" validate:"required"`
	Recommendation string `json:"recommendation"`
}

const (
	maxSummaryLen        = 500
	maxRecommendationLen = 500
)

var fencedBlockRe = regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)\\s*```")

// extractFenced pulls the body of the first fenced code block.
func extractFenced(raw string) (string, bool) {
	m := fencedBlockRe.FindStringSubmatch(raw)
	if m == nil {
		return "", false
	}

	return strings.TrimSpace(m[1]), true
}

// extractBraceSpan pulls the outermost {...} span.
func extractBraceSpan(raw string) (string, bool) {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start == -1 || end == -1 || end < start {
		return "", false
	}

	return raw[start : end+1], true
}

// parseInsight decodes a model response that is assumed to be JSON, possibly
// wrapped in markdown fences or commentary. Extraction strategies are tried
// in a fixed order; when none yields valid, complete JSON the response is
// unparsable and the attempt counts as failed.
func parseInsight(raw string) (*payload, error) {
	const op = "internal.insight.parseInsight"

	candidates := make([]string, 0, 2)

	if s, ok := extractFenced(raw); ok {
		candidates = append(candidates, s)
	}

	if s, ok := extractBraceSpan(raw); ok {
		candidates = append(candidates, s)
	}

	for _, candidate := range candidates {
		var p payload
		if err := json.Unmarshal([]byte(candidate), &p); err != nil {
			continue
		}

		p.normalize()

		if err := validation.ValidateStruct(&p); err != nil {
			continue
		}

		return &p, nil
	}

	return nil, fmt.Errorf("%s: %w", op, apperrors.ErrUnparsable)
}

// normalize lowercases the risk level and clamps free-text fields so that a
// partial or oversized model answer can never reach storage as-is.
func (p *payload) normalize() {
	p.RiskLevel = strings.ToLower(strings.TrimSpace(p.RiskLevel))

	switch p.RiskLevel {
	case "moderate":
		p.RiskLevel = "medium"
	case "critical", "severe":
		p.RiskLevel = "high"
	case "minimal", "none":
		p.RiskLevel = "low"
	}

	p.Summary = clamp(strings.TrimSpace(p.Summary), maxSummaryLen)
	p.Recommendation = clamp(strings.TrimSpace(p.Recommendation), maxRecommendationLen)
}

// clamp cuts s down to at most max bytes, backing up to the nearest rune
// boundary so a multi-byte character is never split.
func clamp(s string, max int) string {
	if len(s) <= max {
		return s
	}

	for max > 0 && !utf8.RuneStart(s[max]) {
		max--
	}

	return s[:max]
}

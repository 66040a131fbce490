package insight

import (
	"errors"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/DevByZero/flowlens-api/internal/apperrors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseInsight(t *testing.T) {
	testCases := []struct {
		name          string
		raw           string
		expectedRisk  string
		expectedError bool
	}{
		{
			name:         "plain json object",
			raw:          `{"riskLevel": "high", "summary": "Large refactor of the auth layer.", "recommendation": "Review carefully."}`,
			expectedRisk: "high",
		},
		{
			name: "fenced json block with commentary",
			raw: "Here is my analysis:\n```json\n" +
				`{"riskLevel": "medium", "summary": "Adds a new endpoint."}` +
				"\n```\nLet me know if you need more detail.",
			expectedRisk: "medium",
		},
		{
			name: "fenced block without language tag",
			raw: "```\n" +
				`{"riskLevel": "low", "summary": "Typo fix."}` +
				"\n```",
			expectedRisk: "low",
		},
		{
			name:         "brace span inside prose",
			raw:          `Sure! The result is {"riskLevel": "low", "summary": "Docs only."} as requested.`,
			expectedRisk: "low",
		},
		{
			name:         "uppercase risk is normalized",
			raw:          `{"riskLevel": "HIGH", "summary": "Rewrites the scheduler."}`,
			expectedRisk: "high",
		},
		{
			name:         "synonym risk is normalized",
			raw:          `{"riskLevel": "moderate", "summary": "Mid-size change."}`,
			expectedRisk: "medium",
		},
		{
			name:          "missing summary fails validation",
			raw:           `{"riskLevel": "low"}`,
			expectedError: true,
		},
		{
			name:          "unknown risk level fails validation",
			raw:           `{"riskLevel": "catastrophic", "summary": "Everything."}`,
			expectedError: true,
		},
		{
			name:          "no json at all",
			raw:           "I cannot analyze this pull request.",
			expectedError: true,
		},
		{
			name:          "truncated json",
			raw:           `{"riskLevel": "high", "summary": "Unterminat`,
			expectedError: true,
		},
		{
			name:          "empty response",
			raw:           "",
			expectedError: true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			p, err := parseInsight(tc.raw)

			if tc.expectedError {
				require.Error(t, err)
				assert.True(t, errors.Is(err, apperrors.ErrUnparsable))

				return
			}

			require.NoError(t, err)
			assert.Equal(t, tc.expectedRisk, p.RiskLevel)
			assert.NotEmpty(t, p.Summary)
		})
	}
}

func TestParseInsight_ClampsLongText(t *testing.T) {
	long := strings.Repeat("x", 2*maxSummaryLen)

	p, err := parseInsight(`{"riskLevel": "low", "summary": "` + long + `"}`)

	require.NoError(t, err)
	assert.Len(t, p.Summary, maxSummaryLen)
}

func TestClamp_NeverSplitsRune(t *testing.T) {
	// "é" is two bytes; position it so a byte-indexed cut would land in
	// the middle of it.
	s := strings.Repeat("x", maxSummaryLen-1) + "économie"

	got := clamp(s, maxSummaryLen)

	assert.True(t, utf8.ValidString(got))
	assert.Equal(t, strings.Repeat("x", maxSummaryLen-1), got)
	assert.LessOrEqual(t, len(got), maxSummaryLen)

	assert.Equal(t, "été", clamp("été", 10))
}

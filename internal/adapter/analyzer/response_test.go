package analyzer

import (
	"errors"
	"strings"
	"testing"
	"time"

	"portfolio-miner/internal/common"
	"portfolio-miner/internal/domain"
	"portfolio-miner/internal/textutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseResponse(t *testing.T) {
	tests := []struct {
		name        string
		input       string
		expectError bool
		verify      func(*testing.T, domain.AnalysisRecord)
	}{
		{
			name:  "纯 JSON",
			input: `{"skills":["Go"],"summary":"CLI tool","estimated_complexity_qualitative":"Medium"}`,
			verify: func(t *testing.T, a domain.AnalysisRecord) {
				assert.Equal(t, []string{"Go"}, a.Skills)
				assert.Equal(t, "CLI tool", a.Summary)
				assert.Equal(t, domain.ComplexityMedium, a.Complexity)
				assert.Equal(t, []string{}, a.Technologies)
				assert.Equal(t, map[string]float64{}, a.PerformanceMetrics)
			},
		},
		{
			name:  "代码块包裹",
			input: "```json\n{\"keywords\":[\"ml\"]}\n```",
			verify: func(t *testing.T, a domain.AnalysisRecord) {
				assert.Equal(t, []string{"ml"}, a.Keywords)
			},
		},
		{
			name: "前后有多余文字",
			input: `Here is the analysis:
			{"summary": "Data pipeline", "estimated_complexity_qualitative": "Very High"}
			Hope this helps!`,
			verify: func(t *testing.T, a domain.AnalysisRecord) {
				assert.Equal(t, "Data pipeline", a.Summary)
				assert.Equal(t, domain.ComplexityVeryHigh, a.Complexity)
			},
		},
		{
			name:  "宽松的字段类型",
			input: `{"skills":"Rust","technologies":["Tokio", 3, null, " "],"performance_metrics":{"accuracy":0.91,"latency":"12ms","ok":true}}`,
			verify: func(t *testing.T, a domain.AnalysisRecord) {
				assert.Equal(t, []string{"Rust"}, a.Skills)
				assert.Equal(t, []string{"Tokio", "3"}, a.Technologies)
				assert.Equal(t, map[string]float64{"accuracy": 0.91}, a.PerformanceMetrics)
			},
		},
		{
			name:  "未知复杂度",
			input: `{"estimated_complexity_qualitative":"Insane"}`,
			verify: func(t *testing.T, a domain.AnalysisRecord) {
				assert.Equal(t, domain.ComplexityNA, a.Complexity)
			},
		},
		{name: "非法 JSON", input: `{"skills": [unquoted]}`, expectError: true},
		{name: "没有 JSON", input: `Just some text without JSON`, expectError: true},
		{name: "空字符串", input: "   ", expectError: true},
		{name: "顶层是数组", input: `["a","b"]`, expectError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseResponse(tt.input)
			if tt.expectError {
				require.Error(t, err)
				assert.Equal(t, common.ErrCodeDecode, common.CodeOf(err))
				return
			}
			require.NoError(t, err)
			tt.verify(t, got)
		})
	}
}

func TestKindOf(t *testing.T) {
	assert.Equal(t, FailureTransport, KindOf(common.NewError(common.ErrCodeTransport, "x")))
	assert.Equal(t, FailureUpstreamStatus, KindOf(common.NewError(common.ErrCodeUpstreamStatus, "x")))
	assert.Equal(t, FailureEnvelope, KindOf(common.NewError(common.ErrCodeEnvelope, "x")))
	assert.Equal(t, FailureDecode, KindOf(common.NewError(common.ErrCodeDecode, "x")))
	assert.Equal(t, FailureTransport, KindOf(errors.New("plain")))
}

func TestBuildPrompt(t *testing.T) {
	rec := domain.RepositoryRecord{
		Name:                "kage",
		Description:         "“Silent” classifier — fast",
		Languages:           map[string]int{"Python": 900, "Shell": 10},
		Dependencies:        []string{"flask", "torch"},
		ReadmeContent:       strings.Repeat("r", textutil.MaxContentLength+50),
		RecentCommits:       []string{"add model", "fix café bug"},
		HasJupyterNotebooks: true,
		LastPushedAt:        time.Now(),
	}

	messages := BuildPrompt(rec)
	require.Len(t, messages, 1)
	assert.Equal(t, "user", messages[0].Role)

	prompt := messages[0].Parts[0]
	assert.Contains(t, prompt, "Project Name: kage\n")
	assert.Contains(t, prompt, `Description: "Silent" classifier -- fast`)
	assert.Contains(t, prompt, "Languages: Python, Shell")
	assert.Contains(t, prompt, "Dependencies: flask, torch")
	assert.Contains(t, prompt, "\n... (truncated)")
	assert.Contains(t, prompt, "add model\nfix cafe bug")
	assert.Contains(t, prompt, "Jupyter notebooks")
	assert.Contains(t, prompt, "estimated_complexity_qualitative")
	assert.Contains(t, prompt, "performance_metrics")
}

func TestBuildPrompt_EmptyRecord(t *testing.T) {
	prompt := BuildPrompt(domain.RepositoryRecord{})[0].Parts[0]

	assert.Contains(t, prompt, "Project Name: Unnamed")
	assert.Contains(t, prompt, "Description: No description.")
	assert.Contains(t, prompt, "Languages: N/A")
	assert.Contains(t, prompt, "Dependencies: N/A")
	assert.Contains(t, prompt, "README:\nN/A")
	assert.NotContains(t, prompt, "Jupyter")
}

func TestBuildDocumentPrompt(t *testing.T) {
	prompt := BuildDocumentPrompt("resume", strings.Repeat("x", textutil.MaxDocumentLength+1))[0].Parts[0]

	assert.Contains(t, prompt, "(resume)")
	assert.Contains(t, prompt, strings.Repeat("x", textutil.MaxDocumentLength)+"\n... (truncated)")
}

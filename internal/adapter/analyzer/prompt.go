package analyzer

import (
	"fmt"
	"strings"

	"portfolio-miner/internal/domain"
	"portfolio-miner/internal/port"
	"portfolio-miner/internal/textutil"
)

const outputSchema = `Output solely valid JSON with the following keys:
- skills (list of strings)
- technologies (list of strings)
- achievements (list of strings)
- summary (string)
- keywords (list of strings)
- estimated_complexity_qualitative (string: one of "Low", "Medium", "High", "Very High")
- performance_metrics (object mapping metric name to number)`

// BuildPrompt 为单个仓库构造一条 user 消息
func BuildPrompt(rec domain.RepositoryRecord) []port.Message {
	name := textutil.Sanitize(rec.Name)
	if name == "" {
		name = "Unnamed"
	}
	description := textutil.Sanitize(rec.Description)
	if description == "" {
		description = "No description."
	}

	commits := make([]string, 0, len(rec.RecentCommits))
	for _, c := range rec.RecentCommits {
		commits = append(commits, textutil.Sanitize(c))
	}

	var notebookNote string
	if rec.HasJupyterNotebooks {
		notebookNote = "Should performance metrics be present within Jupyter notebooks, extract them.\n\n"
	}

	content := fmt.Sprintf(`Analyze this software project. %s

Project Name: %s
Description: %s
Languages: %s
Dependencies: %s

README:
%s

Commits:
%s

%sReturn JSON ONLY. No other prose.`,
		outputSchema,
		name,
		description,
		orNA(textutil.Sanitize(strings.Join(rec.LanguageNames(), ", "))),
		orNA(textutil.Sanitize(strings.Join(rec.Dependencies, ", "))),
		textutil.LimitAndSanitize(rec.ReadmeContent, textutil.MaxContentLength),
		textutil.LimitAndSanitize(strings.Join(commits, "\n"), textutil.MaxContentLength),
		notebookNote,
	)

	return []port.Message{{Role: "user", Parts: []string{content}}}
}

// BuildDocumentPrompt 简历等自由文本的 prompt
func BuildDocumentPrompt(label, text string) []port.Message {
	content := fmt.Sprintf(`You are an expert technical reviewer. Analyze the following document (%s) and summarize the professional profile it describes. %s

Document:
---
%s
---

Return JSON ONLY. No explanations, no markdown.`,
		orNA(textutil.Sanitize(label)),
		outputSchema,
		textutil.LimitAndSanitize(text, textutil.MaxDocumentLength),
	)
	return []port.Message{{Role: "user", Parts: []string{content}}}
}

func orNA(s string) string {
	if s == "" {
		return "N/A"
	}
	return s
}

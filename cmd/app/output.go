package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"portfolio-miner/internal/domain"
)

const summaryWidth = 60

var projectHeaders = []string{"#", "项目", "得分", "复杂度", "Stars", "语言", "摘要"}
var projectAligns = []columnAlignment{alignRight, alignLeft, alignRight, alignLeft, alignRight, alignLeft, alignLeft}

func projectRows(projects []domain.ScoredProject) [][]string {
	rows := make([][]string, 0, len(projects))
	for i, p := range projects {
		rows = append(rows, []string{
			strconv.Itoa(i + 1),
			p.FullName,
			fmt.Sprintf("%.2f", p.Score),
			string(p.Complexity),
			strconv.Itoa(p.Stars),
			strings.Join(p.LanguageNames(), ", "),
			truncateRunes(p.Summary, summaryWidth),
		})
	}
	return rows
}

var recordHeaders = []string{"#", "仓库", "私有", "Stars", "Forks", "语言", "依赖", "最后推送"}
var recordAligns = []columnAlignment{alignRight, alignLeft, alignLeft, alignRight, alignRight, alignLeft, alignRight, alignLeft}

func recordRows(records []domain.RepositoryRecord) [][]string {
	rows := make([][]string, 0, len(records))
	for i, r := range records {
		private := ""
		if r.IsPrivate {
			private = "🔒"
		}
		rows = append(rows, []string{
			strconv.Itoa(i + 1),
			r.FullName,
			private,
			strconv.Itoa(r.Stars),
			strconv.Itoa(r.Forks),
			strings.Join(r.LanguageNames(), ", "),
			strconv.Itoa(len(r.Dependencies)),
			formatDate(r.LastPushedAt),
		})
	}
	return rows
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Format("2006-01-02")
}

func truncateRunes(s string, limit int) string {
	s = strings.Join(strings.Fields(s), " ")
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit]) + "…"
}

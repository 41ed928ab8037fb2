package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"portfolio-miner/internal/adapter/analyzer"
	"portfolio-miner/internal/adapter/github"
	"portfolio-miner/internal/common"
	"portfolio-miner/internal/domain"
	"portfolio-miner/internal/port"
	"portfolio-miner/internal/scoring"
	"portfolio-miner/internal/service"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func repoListJSON(id int, name string, stars int) string {
	return fmt.Sprintf(`{"id":%d,"name":%q,"full_name":"silragon/%s","owner":{"login":"silragon"},
		"private":false,"fork":false,"stargazers_count":%d,"pushed_at":"2024-05-01T00:00:00Z"}`,
		id, name, name, stars)
}

// changingGitHub 第一次列出 1 个仓库，之后新增一个 900 star 的仓库
func changingGitHub(t *testing.T) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var listCalls atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/user", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"login":"silragon"}`)
	})
	mux.HandleFunc("/user/repos", func(w http.ResponseWriter, r *http.Request) {
		if listCalls.Add(1) == 1 {
			fmt.Fprintf(w, "[%s]", repoListJSON(1, "kage", 50))
			return
		}
		fmt.Fprintf(w, "[%s,%s]", repoListJSON(1, "kage", 50), repoListJSON(2, "nova", 900))
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server, &listCalls
}

func testPipeline(t *testing.T, baseURL string) *pipeline {
	t.Helper()
	h, err := github.NewHarvester("test-token", github.WithBaseURL(baseURL), github.WithRateLimit(0, 0))
	require.NoError(t, err)
	return &pipeline{
		harvester: h,
		service: service.NewPipelineService(h, analyzer.NewSemanticAnalyzer(nil),
			scoring.NewEngine(scoring.DefaultPolicy())),
		cleanup: func() {},
	}
}

func starsByName(projects []domain.ScoredProject) map[string]int {
	out := make(map[string]int, len(projects))
	for _, p := range projects {
		out[p.Name] = p.Stars
	}
	return out
}

func TestPipeline_RunCycleSeesFreshRepositories(t *testing.T) {
	server, listCalls := changingGitHub(t)
	p := testPipeline(t, server.URL)
	ctx := context.Background()

	first, err := p.runCycle(ctx, port.HarvestOptions{})
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"kage": 50}, starsByName(first.Projects))

	second, err := p.runCycle(ctx, port.HarvestOptions{})
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"kage": 50, "nova": 900}, starsByName(second.Projects))
	assert.Equal(t, int32(2), listCalls.Load())
}

func TestRunScheduled_EachCycleRefetchesRepositories(t *testing.T) {
	server, _ := changingGitHub(t)
	p := testPipeline(t, server.URL)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var results []*service.RunResult
	err := runScheduled(ctx, 5*time.Millisecond, func(c context.Context) error {
		result, err := p.runCycle(c, port.HarvestOptions{})
		if err != nil {
			return err
		}
		results = append(results, result)
		if len(results) == 2 {
			cancel()
		}
		return nil
	})

	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Len(t, results[0].Projects, 1)
	require.Len(t, results[1].Projects, 2)
	assert.Equal(t, "nova", results[1].Top[0].Name)
	assert.Equal(t, 900, results[1].Top[0].Stars)
}

func TestErrorHint(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{name: "配置错误", err: common.NewError(common.ErrCodeConfig, "github.token 未配置"), want: "config sample"},
		{name: "包装后的认证错误", err: fmt.Errorf("rank: %w", common.WrapError(common.ErrCodeAuth, "GitHub 认证失败", errors.New("401"))), want: "GITHUB_TOKEN"},
		{name: "数据库错误", err: common.NewError(common.ErrCodeDatabase, "连接失败"), want: "DATABASE_DSN"},
		{name: "其他错误", err: errors.New("boom"), want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := errorHint(tt.err)
			if tt.want == "" {
				assert.Empty(t, got)
				return
			}
			assert.Contains(t, got, tt.want)
		})
	}
}

package github

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"sync"
	"time"

	"portfolio-miner/internal/adapter/filter"
	"portfolio-miner/internal/common"
	"portfolio-miner/internal/domain"
	"portfolio-miner/internal/manifest"
	"portfolio-miner/internal/port"

	"github.com/google/go-github/v53/github"
	"github.com/sirupsen/logrus"
	"github.com/sourcegraph/conc/pool"
	"golang.org/x/oauth2"
	"golang.org/x/time/rate"
)

const (
	defaultConcurrency       = 4
	defaultRequestsPerSecond = 10
	reposPerPage             = 100
	// 自己的、参与协作的以及所属组织的仓库
	repoAffiliation = "owner,collaborator,organization_member"
)

// Harvester 实现了 port.Harvester 接口
type Harvester struct {
	client      *github.Client
	registry    *manifest.Registry
	limiter     *rate.Limiter
	concurrency int
	log         *logrus.Entry

	// 仓库枚举结果缓存，每个实例 (每个凭证) 独立
	mu     sync.Mutex
	cached *enumeration
}

type enumeration struct {
	login string
	repos []*github.Repository
}

// Option 配置 Harvester
type Option func(*Harvester) error

// WithConcurrency 同时处理的仓库数
func WithConcurrency(n int) Option {
	return func(h *Harvester) error {
		if n > 0 {
			h.concurrency = n
		}
		return nil
	}
}

// WithRateLimit 限制 GitHub API 请求速率
func WithRateLimit(requestsPerSecond float64, burst int) Option {
	return func(h *Harvester) error {
		if requestsPerSecond <= 0 {
			h.limiter = rate.NewLimiter(rate.Inf, 0)
			return nil
		}
		if burst <= 0 {
			burst = 1
		}
		h.limiter = rate.NewLimiter(rate.Limit(requestsPerSecond), burst)
		return nil
	}
}

// WithRegistry 替换依赖清单注册表
func WithRegistry(r *manifest.Registry) Option {
	return func(h *Harvester) error {
		if r != nil {
			h.registry = r
		}
		return nil
	}
}

// WithBaseURL 指向 GitHub Enterprise 或测试服务器
func WithBaseURL(rawURL string) Option {
	return func(h *Harvester) error {
		if !strings.HasSuffix(rawURL, "/") {
			rawURL += "/"
		}
		u, err := url.Parse(rawURL)
		if err != nil {
			return common.WrapError(common.ErrCodeConfig, "无效的 GitHub API 地址", err)
		}
		h.client.BaseURL = u
		return nil
	}
}

// NewHarvester 初始化 GitHub 客户端；凭证为空时返回配置错误
func NewHarvester(token string, opts ...Option) (*Harvester, error) {
	if strings.TrimSpace(token) == "" {
		return nil, common.NewError(common.ErrCodeConfig, "GitHub token 未配置")
	}

	ts := oauth2.StaticTokenSource(
		&oauth2.Token{AccessToken: token},
	)
	tc := oauth2.NewClient(context.Background(), ts)

	h := &Harvester{
		client:      github.NewClient(tc),
		registry:    manifest.NewRegistry(),
		limiter:     rate.NewLimiter(rate.Limit(defaultRequestsPerSecond), defaultRequestsPerSecond),
		concurrency: defaultConcurrency,
		log:         logrus.WithField("component", "harvester"),
	}
	for _, opt := range opts {
		if err := opt(h); err != nil {
			return nil, err
		}
	}
	return h, nil
}

// Harvest 拉取当前用户的仓库，过滤后逐个补全详情
// 输出顺序与 GitHub 枚举顺序一致
func (h *Harvester) Harvest(ctx context.Context, opts port.HarvestOptions) ([]domain.RepositoryRecord, error) {
	enum, err := h.enumerate(ctx)
	if err != nil {
		return nil, err
	}

	selected := filter.NewRepoFilter(enum.login, opts).Apply(enum.repos)
	h.log.Infof("🔍 %s 共有 %d 个仓库，过滤后剩余 %d 个", enum.login, len(enum.repos), len(selected))

	records := make([]domain.RepositoryRecord, len(selected))
	p := pool.New().WithMaxGoroutines(h.concurrency)
	for i, repo := range selected {
		i, repo := i, repo
		p.Go(func() {
			records[i] = h.buildRecord(ctx, repo)
		})
	}
	p.Wait()

	if err := ctx.Err(); err != nil {
		return nil, common.WrapError(common.ErrCodeTransport, "抓取被中断", err)
	}
	return records, nil
}

// Reset 丢弃仓库枚举缓存
func (h *Harvester) Reset() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.cached = nil
}

// enumerate 认证并列出全部仓库；只缓存成功的结果
func (h *Harvester) enumerate(ctx context.Context) (*enumeration, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.cached != nil {
		h.log.Debug("使用缓存的仓库列表")
		return h.cached, nil
	}

	if err := h.limiter.Wait(ctx); err != nil {
		return nil, common.WrapError(common.ErrCodeTransport, "等待 GitHub 限流", err)
	}
	user, _, err := h.client.Users.Get(ctx, "")
	if err != nil {
		return nil, common.WrapError(common.ErrCodeAuth, "GitHub 认证失败", err)
	}
	login := user.GetLogin()
	h.log.Infof("✅ 已认证为 %s", login)

	var all []*github.Repository
	listOpts := &github.RepositoryListOptions{
		Affiliation: repoAffiliation,
		Sort:        "pushed",
		ListOptions: github.ListOptions{PerPage: reposPerPage},
	}
	for {
		var page []*github.Repository
		var resp *github.Response
		err := common.Do(ctx, func(ctx context.Context) error {
			if err := h.limiter.Wait(ctx); err != nil {
				return common.Permanent(err)
			}
			var apiErr error
			page, resp, apiErr = h.client.Repositories.List(ctx, "", listOpts)
			if isClientError(apiErr) {
				return common.Permanent(apiErr)
			}
			return apiErr
		}, common.WithMaxRetries(2), common.WithInitialDelay(time.Second))
		if err != nil {
			return nil, common.WrapError(common.ErrCodeGitHubAPI, "列出仓库失败", err)
		}

		all = append(all, page...)
		if resp == nil || resp.NextPage == 0 {
			break
		}
		listOpts.Page = resp.NextPage
	}

	h.cached = &enumeration{login: login, repos: all}
	return h.cached, nil
}

// buildRecord 补全单个仓库的详情；任何子请求失败只影响对应字段
func (h *Harvester) buildRecord(ctx context.Context, repo *github.Repository) domain.RepositoryRecord {
	owner, name := repo.GetOwner().GetLogin(), repo.GetName()
	log := h.log.WithField("repo", repo.GetFullName())

	record := domain.RepositoryRecord{
		ID:            repo.GetID(),
		Name:          name,
		FullName:      repo.GetFullName(),
		Description:   repo.GetDescription(),
		HTMLURL:       repo.GetHTMLURL(),
		CloneURL:      repo.GetCloneURL(),
		IsPrivate:     repo.GetPrivate(),
		CreatedAt:     utc(repo.GetCreatedAt()),
		UpdatedAt:     utc(repo.GetUpdatedAt()),
		LastPushedAt:  utc(repo.GetPushedAt()),
		Stars:         repo.GetStargazersCount(),
		Forks:         repo.GetForksCount(),
		Watchers:      repo.GetSubscribersCount(),
		Languages:     map[string]int{},
		RecentCommits: []string{},
		Dependencies:  []string{},
	}

	if langs, err := h.languages(ctx, owner, name); err != nil {
		log.Warnf("⚠️ 获取语言失败: %v", err)
	} else {
		record.Languages = langs
	}

	if readme, err := h.readme(ctx, owner, name); err != nil {
		log.Warnf("⚠️ 获取 README 失败: %v", err)
	} else {
		record.ReadmeContent = readme
	}

	if commits, err := h.recentCommits(ctx, owner, name); err != nil {
		log.Warnf("⚠️ 获取提交记录失败: %v", err)
	} else {
		record.RecentCommits = commits
	}

	if deps, hasNotebooks, err := h.rootManifests(ctx, owner, name); err != nil {
		log.Warnf("⚠️ 列出根目录失败: %v", err)
	} else {
		record.Dependencies = deps
		record.HasJupyterNotebooks = hasNotebooks
	}

	log.Debugf("📦 语言 %d 种，依赖 %d 个，提交 %d 条", len(record.Languages), len(record.Dependencies), len(record.RecentCommits))
	return record
}

func (h *Harvester) languages(ctx context.Context, owner, name string) (map[string]int, error) {
	if err := h.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	langs, _, err := h.client.Repositories.ListLanguages(ctx, owner, name)
	if err != nil {
		return nil, err
	}
	if langs == nil {
		langs = map[string]int{}
	}
	return langs, nil
}

func (h *Harvester) readme(ctx context.Context, owner, name string) (string, error) {
	if err := h.limiter.Wait(ctx); err != nil {
		return "", err
	}
	content, _, err := h.client.Repositories.GetReadme(ctx, owner, name, nil)
	if err != nil {
		return "", err
	}
	return content.GetContent()
}

func (h *Harvester) recentCommits(ctx context.Context, owner, name string) ([]string, error) {
	if err := h.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	commits, _, err := h.client.Repositories.ListCommits(ctx, owner, name, &github.CommitsListOptions{
		ListOptions: github.ListOptions{PerPage: domain.MaxRecentCommits},
	})
	if err != nil {
		return nil, err
	}

	messages := make([]string, 0, len(commits))
	for _, c := range commits {
		msg := strings.TrimSpace(c.GetCommit().GetMessage())
		if msg == "" {
			continue
		}
		messages = append(messages, msg)
		if len(messages) == domain.MaxRecentCommits {
			break
		}
	}
	return messages, nil
}

// rootManifests 列出根目录，解析能识别的依赖清单，并检查是否有 notebook
func (h *Harvester) rootManifests(ctx context.Context, owner, name string) ([]string, bool, error) {
	if err := h.limiter.Wait(ctx); err != nil {
		return nil, false, err
	}
	_, entries, _, err := h.client.Repositories.GetContents(ctx, owner, name, "", nil)
	if err != nil {
		return nil, false, err
	}

	hasNotebooks := false
	var sets [][]string
	for _, entry := range entries {
		if entry.GetType() != "file" {
			continue
		}
		filename := entry.GetName()
		if !hasNotebooks && strings.HasSuffix(strings.ToLower(filename), ".ipynb") {
			hasNotebooks = true
		}

		format, ok := h.registry.Lookup(filename)
		if !ok {
			continue
		}
		raw, err := h.fileContent(ctx, owner, name, entry.GetPath())
		if err != nil {
			h.log.WithField("repo", owner+"/"+name).Warnf("⚠️ 读取 %s 失败: %v", filename, err)
			continue
		}
		sets = append(sets, h.registry.Parse(format.ID, raw))
	}
	return manifest.Union(sets...), hasNotebooks, nil
}

func (h *Harvester) fileContent(ctx context.Context, owner, name, path string) ([]byte, error) {
	if err := h.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	file, _, _, err := h.client.Repositories.GetContents(ctx, owner, name, path, nil)
	if err != nil {
		return nil, err
	}
	if file == nil {
		return nil, errors.New("not a file")
	}
	content, err := file.GetContent()
	if err != nil {
		return nil, err
	}
	return []byte(content), nil
}

func isClientError(err error) bool {
	var ghErr *github.ErrorResponse
	if errors.As(err, &ghErr) && ghErr.Response != nil {
		return ghErr.Response.StatusCode >= 400 && ghErr.Response.StatusCode < 500
	}
	return false
}

func utc(ts github.Timestamp) time.Time {
	if ts.IsZero() {
		return time.Time{}
	}
	return ts.Time.UTC()
}

package filter

import (
	"strings"

	"portfolio-miner/internal/port"

	"github.com/google/go-github/v53/github"
	"github.com/sirupsen/logrus"
)

// 被排除的原因
const (
	ReasonProfileRepo = "profile repository"
	ReasonFork        = "fork"
	ReasonPrivate     = "private repository excluded"
	ReasonLowStars    = "below minimum stars"
)

// RepoFilter 决定哪些仓库进入流水线；纯函数，不访问网络
type RepoFilter struct {
	login          string
	includePrivate bool
	minStars       int
	log            *logrus.Entry
}

// NewRepoFilter 创建过滤器，login 为当前认证用户
func NewRepoFilter(login string, opts port.HarvestOptions) *RepoFilter {
	return &RepoFilter{
		login:          login,
		includePrivate: opts.IncludePrivate,
		minStars:       opts.MinStars,
		log:            logrus.WithField("component", "filter"),
	}
}

// Check 返回是否保留该仓库；不保留时给出原因
func (f *RepoFilter) Check(repo *github.Repository) (bool, string) {
	if f.login != "" && strings.EqualFold(repo.GetName(), f.login) {
		return false, ReasonProfileRepo
	}
	if repo.GetFork() {
		return false, ReasonFork
	}
	if repo.GetPrivate() {
		// 私有仓库不受 star 限制
		if !f.includePrivate {
			return false, ReasonPrivate
		}
		return true, ""
	}
	if repo.GetStargazersCount() < f.minStars {
		return false, ReasonLowStars
	}
	return true, ""
}

// Apply 按原顺序返回通过过滤的仓库
func (f *RepoFilter) Apply(repos []*github.Repository) []*github.Repository {
	filtered := make([]*github.Repository, 0, len(repos))
	for _, repo := range repos {
		if repo == nil {
			continue
		}
		keep, reason := f.Check(repo)
		if !keep {
			f.log.Debugf("[Filter] 跳过 %s: %s", repo.GetFullName(), reason)
			continue
		}
		filtered = append(filtered, repo)
	}
	return filtered
}

// Package config 读取 TOML 配置并叠加环境变量
package config

import (
	_ "embed"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"portfolio-miner/internal/common"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// SampleConfig 带注释的配置示例
func SampleConfig() string {
	return sampleConfig
}

type GitHub struct {
	Token             string  `toml:"token"`
	IncludePrivate    bool    `toml:"include_private"`
	MinStars          int     `toml:"min_stars"`
	Concurrency       int     `toml:"concurrency"`
	RequestsPerSecond float64 `toml:"requests_per_second"`
}

type Gemini struct {
	APIKey         string `toml:"api_key"`
	Model          string `toml:"model"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

type Pipeline struct {
	TopK        int `toml:"top_k"`
	Concurrency int `toml:"concurrency"`
}

type Scoring struct {
	PolicyFile string `toml:"policy_file"`
}

type Storage struct {
	DSN string `toml:"dsn"`
}

type Notify struct {
	FeishuWebhook string `toml:"feishu_webhook"`
}

type Logging struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
	Output string `toml:"output"`
}

// Config 全部配置
type Config struct {
	GitHub   GitHub   `toml:"github"`
	Gemini   Gemini   `toml:"gemini"`
	Pipeline Pipeline `toml:"pipeline"`
	Scoring  Scoring  `toml:"scoring"`
	Storage  Storage  `toml:"storage"`
	Notify   Notify   `toml:"notify"`
	Logging  Logging  `toml:"logging"`
}

// Default 默认配置
func Default() Config {
	return Config{
		GitHub: GitHub{
			IncludePrivate:    true,
			Concurrency:       4,
			RequestsPerSecond: 10,
		},
		Gemini: Gemini{
			Model:          "gemini-2.0-flash",
			TimeoutSeconds: 300,
		},
		Pipeline: Pipeline{
			TopK:        4,
			Concurrency: 3,
		},
		Logging: Logging{
			Level:  "info",
			Format: "text",
			Output: "stderr",
		},
	}
}

// DefaultConfigPath ~/.config/portfolio-miner/config.toml
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/portfolio-miner/config.toml")
}

// Load 读取配置文件 (不存在时使用默认值)，再叠加环境变量
// path 为空时依次尝试默认路径和当前目录下的 portfolio-miner.toml
func Load(path string) (*Config, error) {
	cfg := Default()

	resolved, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, err
	}

	if exists {
		file, err := os.Open(resolved)
		if err != nil {
			return nil, common.WrapError(common.ErrCodeConfig, "打开配置文件失败", err)
		}
		defer file.Close()

		if err := toml.NewDecoder(file).Decode(&cfg); err != nil {
			return nil, common.WrapError(common.ErrCodeConfig, "解析配置文件失败", err)
		}
	}

	cfg.applyEnv(os.LookupEnv)
	if err := cfg.normalize(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyEnv 非空的环境变量覆盖文件中的值
func (c *Config) applyEnv(lookup func(string) (string, bool)) {
	set := func(dst *string, keys ...string) {
		for _, key := range keys {
			if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
				*dst = strings.TrimSpace(v)
				return
			}
		}
	}

	set(&c.GitHub.Token, "GITHUB_TOKEN")
	set(&c.Gemini.APIKey, "GEMINI_API_KEY", "GEMINI_API")
	set(&c.Storage.DSN, "DATABASE_DSN")
	set(&c.Notify.FeishuWebhook, "FEISHU_WEBHOOK")
	set(&c.Logging.Level, "PORTFOLIO_LOG_LEVEL")
}

func (c *Config) normalize() error {
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	c.Logging.Output = strings.TrimSpace(c.Logging.Output)
	c.Gemini.Model = strings.TrimSpace(c.Gemini.Model)

	if c.Scoring.PolicyFile != "" {
		expanded, err := expandPath(c.Scoring.PolicyFile)
		if err != nil {
			return common.WrapError(common.ErrCodeConfig, "scoring.policy_file", err)
		}
		c.Scoring.PolicyFile = expanded
	}
	return nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		if _, err := os.Stat(expanded); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return "", false, common.WrapError(common.ErrCodeConfig, "配置文件不存在", err)
			}
			return "", false, common.WrapError(common.ErrCodeConfig, "读取配置文件失败", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}
	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}

	projectPath, err := filepath.Abs("portfolio-miner.toml")
	if err != nil {
		return "", false, common.WrapError(common.ErrCodeConfig, "解析配置路径失败", err)
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", common.WrapError(common.ErrCodeConfig, "无法获取用户目录", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	absolute, err := filepath.Abs(filepath.Clean(pathValue))
	if err != nil {
		return "", common.WrapError(common.ErrCodeConfig, "解析路径失败", err)
	}
	return absolute, nil
}

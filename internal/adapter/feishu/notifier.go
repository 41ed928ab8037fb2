package feishu

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"portfolio-miner/internal/common"
	"portfolio-miner/internal/domain"

	"github.com/sirupsen/logrus"
)

// summaryLimit 卡片中每个项目摘要的最大字符数
const summaryLimit = 280

// Notifier 实现了 port.Notifier 接口
type Notifier struct {
	webhookURL string
	httpClient *http.Client
	retryDelay time.Duration
	log        *logrus.Entry
}

type Option func(*Notifier)

// WithHTTPClient 替换默认的 HTTP 客户端
func WithHTTPClient(c *http.Client) Option {
	return func(n *Notifier) {
		if c != nil {
			n.httpClient = c
		}
	}
}

// WithRetryDelay 首次重试前的等待时间
func WithRetryDelay(d time.Duration) Option {
	return func(n *Notifier) {
		if d > 0 {
			n.retryDelay = d
		}
	}
}

func NewNotifier(webhook string, opts ...Option) *Notifier {
	n := &Notifier{
		webhookURL: strings.TrimSpace(webhook),
		httpClient: &http.Client{Timeout: 15 * time.Second},
		retryDelay: 500 * time.Millisecond,
		log:        logrus.WithField("component", "feishu"),
	}
	for _, opt := range opts {
		opt(n)
	}
	if n.webhookURL == "" {
		n.log.Warn("⚠️ 警告: 飞书 Webhook 为空，推送功能将无法工作！")
	}
	return n
}

// webhookResponse 飞书返回体，code 非 0 表示失败
type webhookResponse struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
}

// Notify 发送排行卡片 (Schema 2.0)
func (n *Notifier) Notify(ctx context.Context, runID string, top []domain.ScoredProject) error {
	if n.webhookURL == "" {
		return common.NewError(common.ErrCodeNotification, "Webhook URL 为空")
	}
	if len(top) == 0 {
		n.log.Info("📭 没有可推送的项目")
		return nil
	}

	body, err := json.Marshal(buildCard(runID, top))
	if err != nil {
		return common.WrapError(common.ErrCodeNotification, "构造卡片失败", err)
	}

	err = common.Do(ctx, func(ctx context.Context) error {
		return n.post(ctx, body)
	},
		common.WithMaxRetries(3),
		common.WithInitialDelay(n.retryDelay),
	)
	if err != nil {
		return common.WrapError(common.ErrCodeNotification, "发送请求失败", err)
	}

	n.log.Infof("📨 已推送 %d 个项目 (run=%s)", len(top), runID)
	return nil
}

func (n *Notifier) post(ctx context.Context, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.webhookURL, bytes.NewReader(body))
	if err != nil {
		return common.Permanent(err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))

	if resp.StatusCode != http.StatusOK {
		statusErr := fmt.Errorf("飞书 API 报错: 状态码 %d", resp.StatusCode)
		// 4xx 重试也没用
		if resp.StatusCode >= 400 && resp.StatusCode < 500 {
			return common.Permanent(statusErr)
		}
		return statusErr
	}

	var result webhookResponse
	if len(raw) > 0 && json.Unmarshal(raw, &result) == nil && result.Code != 0 {
		return common.Permanent(fmt.Errorf("飞书 API 报错: code=%d msg=%s", result.Code, result.Msg))
	}
	return nil
}

func buildCard(runID string, top []domain.ScoredProject) map[string]interface{} {
	elements := make([]map[string]interface{}, 0, len(top)*2+1)
	for i, p := range top {
		if i > 0 {
			elements = append(elements, map[string]interface{}{"tag": "hr"})
		}
		elements = append(elements, map[string]interface{}{
			"tag":       "markdown",
			"content":   projectMarkdown(i+1, p),
			"text_size": "normal",
		})
	}
	elements = append(elements, map[string]interface{}{
		"tag":       "markdown",
		"content":   fmt.Sprintf("<font color='grey'>run: %s</font>", runID),
		"text_size": "notation",
	})

	return map[string]interface{}{
		"msg_type": "interactive",
		"card": map[string]interface{}{
			"schema": "2.0",
			"config": map[string]interface{}{
				"update_multi": true,
			},
			"header": map[string]interface{}{
				"title": map[string]interface{}{
					"tag":     "plain_text",
					"content": fmt.Sprintf("🏆 项目排行 Top %d", len(top)),
				},
				"template": "blue",
			},
			"body": map[string]interface{}{
				"direction": "vertical",
				"elements":  elements,
			},
		},
	}
}

func projectMarkdown(rank int, p domain.ScoredProject) string {
	name := p.FullName
	if name == "" {
		name = p.Name
	}
	title := name
	if p.HTMLURL != "" {
		title = fmt.Sprintf("[%s](%s)", name, p.HTMLURL)
	}

	summary := strings.TrimSpace(p.Summary)
	if summary == "" {
		summary = "暂无摘要"
	}

	return fmt.Sprintf("**%d. %s**\n**🏅 得分:** %.2f  |  **🧩 复杂度:** %s  |  **⭐ Stars:** %d\n%s",
		rank, title, p.Score, p.Complexity, p.Stars, shorten(summary, summaryLimit))
}

func shorten(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit]) + "…"
}

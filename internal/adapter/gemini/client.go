package gemini

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"

	"portfolio-miner/internal/common"
	"portfolio-miner/internal/port"

	"github.com/google/generative-ai-go/genai"
	"github.com/googleapis/gax-go/v2/apierror"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
)

const DefaultModel = "gemini-2.0-flash"

// 生成参数：低温度，要求输出稳定
const (
	temperature     = 0.2
	topK            = 40
	topP            = 1.0
	maxOutputTokens = 2048
)

// sendFunc 发送一轮对话；测试里替换掉真实的 API 调用
type sendFunc func(ctx context.Context, history []*genai.Content, parts []genai.Part) (*genai.GenerateContentResponse, error)

// Client 实现了 port.Generator 接口
type Client struct {
	client    *genai.Client
	model     *genai.GenerativeModel
	modelName string
	send      sendFunc
}

// NewClient 初始化 Gemini 客户端；缺少 API Key 时返回配置错误
func NewClient(ctx context.Context, apiKey, modelName string) (*Client, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, common.NewError(common.ErrCodeConfig, "Gemini API key 未配置")
	}
	if modelName == "" {
		modelName = DefaultModel
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, common.WrapError(common.ErrCodeConfig, "创建 Gemini 客户端失败", err)
	}

	model := client.GenerativeModel(modelName)
	model.SetTemperature(temperature)
	model.SetTopK(topK)
	model.SetTopP(topP)
	model.SetMaxOutputTokens(maxOutputTokens)
	// 强制要求返回 JSON，降低解析错误的概率
	model.ResponseMIMEType = "application/json"

	c := &Client{client: client, model: model, modelName: modelName}
	c.send = c.sendChat
	return c, nil
}

// Model 当前使用的模型名
func (c *Client) Model() string {
	return c.modelName
}

// Close 释放底层连接
func (c *Client) Close() error {
	if c.client == nil {
		return nil
	}
	return c.client.Close()
}

// Generate 前面的消息作为历史，最后一条作为本轮输入
func (c *Client) Generate(ctx context.Context, messages []port.Message) (string, error) {
	if len(messages) == 0 {
		return "", common.NewError(common.ErrCodeInvalidInput, "消息列表为空")
	}

	history := toContents(messages[:len(messages)-1])
	last := toContents(messages[len(messages)-1:])[0]

	resp, err := c.send(ctx, history, last.Parts)
	if err != nil {
		return "", classifyError(err)
	}
	return extractText(resp)
}

func (c *Client) sendChat(ctx context.Context, history []*genai.Content, parts []genai.Part) (*genai.GenerateContentResponse, error) {
	cs := c.model.StartChat()
	cs.History = history
	return cs.SendMessage(ctx, parts...)
}

func toContents(messages []port.Message) []*genai.Content {
	out := make([]*genai.Content, 0, len(messages))
	for _, m := range messages {
		role := m.Role
		if role == "" {
			role = "user"
		}
		parts := make([]genai.Part, 0, len(m.Parts))
		for _, p := range m.Parts {
			parts = append(parts, genai.Text(p))
		}
		out = append(out, &genai.Content{Role: role, Parts: parts})
	}
	return out
}

// extractText 取第一个候选里的全部文本片段
func extractText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 {
		return "", common.NewError(common.ErrCodeEnvelope, "AI 返回内容为空: 没有候选结果")
	}
	cand := resp.Candidates[0]
	if cand == nil || cand.Content == nil || len(cand.Content.Parts) == 0 {
		return "", common.NewError(common.ErrCodeEnvelope, "AI 返回内容为空: 候选结果没有内容")
	}

	var b strings.Builder
	for _, part := range cand.Content.Parts {
		if text, ok := part.(genai.Text); ok {
			b.WriteString(string(text))
		}
	}
	if b.Len() == 0 {
		return "", common.NewError(common.ErrCodeEnvelope, "AI 返回格式错误: 没有文本片段")
	}
	return b.String(), nil
}

// classifyError 把 SDK 错误归到 transport / upstream_status / envelope 三类
func classifyError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return common.WrapError(common.ErrCodeTransport, "Gemini 调用超时或被取消", err)
	}

	var blocked *genai.BlockedError
	if errors.As(err, &blocked) {
		return common.WrapError(common.ErrCodeEnvelope, "Gemini 拒绝生成", err)
	}

	var gErr *googleapi.Error
	if errors.As(err, &gErr) {
		return common.WrapError(common.ErrCodeUpstreamStatus, fmt.Sprintf("Gemini API 错误 %d", gErr.Code), err)
	}

	var apiErr *apierror.APIError
	if errors.As(err, &apiErr) {
		if code := apiErr.HTTPCode(); code > 0 {
			return common.WrapError(common.ErrCodeUpstreamStatus, fmt.Sprintf("Gemini API 错误 %d", code), err)
		}
		if st := apiErr.GRPCStatus(); st != nil {
			switch st.Code() {
			case codes.Unavailable, codes.DeadlineExceeded, codes.Canceled:
				return common.WrapError(common.ErrCodeTransport, "Gemini 连接失败", err)
			}
			return common.WrapError(common.ErrCodeUpstreamStatus, fmt.Sprintf("Gemini API 错误 %s", st.Code()), err)
		}
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return common.WrapError(common.ErrCodeTransport, "Gemini 网络错误", err)
	}
	return common.WrapError(common.ErrCodeTransport, "Gemini 调用失败", err)
}

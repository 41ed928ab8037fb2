package gemini

import (
	"context"
	"errors"
	"fmt"
	"net"
	"testing"

	"portfolio-miner/internal/common"
	"portfolio-miner/internal/port"

	"github.com/google/generative-ai-go/genai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/googleapi"
)

func textResponse(parts ...genai.Part) *genai.GenerateContentResponse {
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{Content: &genai.Content{Role: "model", Parts: parts}}},
	}
}

func TestNewClient_RequiresAPIKey(t *testing.T) {
	c, err := NewClient(context.Background(), "  ", "")
	assert.Nil(t, c)
	require.Error(t, err)
	assert.Equal(t, common.ErrCodeConfig, common.CodeOf(err))
}

func TestClient_Generate(t *testing.T) {
	var gotHistory []*genai.Content
	var gotParts []genai.Part
	c := &Client{send: func(ctx context.Context, history []*genai.Content, parts []genai.Part) (*genai.GenerateContentResponse, error) {
		gotHistory, gotParts = history, parts
		return textResponse(genai.Text(`{"summary":`), genai.Text(`"ok"}`)), nil
	}}

	out, err := c.Generate(context.Background(), []port.Message{
		{Role: "user", Parts: []string{"first"}},
		{Role: "model", Parts: []string{"reply"}},
		{Parts: []string{"analyze this"}},
	})

	require.NoError(t, err)
	assert.Equal(t, `{"summary":"ok"}`, out)
	require.Len(t, gotHistory, 2)
	assert.Equal(t, "user", gotHistory[0].Role)
	assert.Equal(t, "model", gotHistory[1].Role)
	assert.Equal(t, []genai.Part{genai.Text("analyze this")}, gotParts)
}

func TestClient_GenerateRejectsEmptyMessages(t *testing.T) {
	c := &Client{}
	_, err := c.Generate(context.Background(), nil)
	assert.Equal(t, common.ErrCodeInvalidInput, common.CodeOf(err))
}

func TestExtractText(t *testing.T) {
	tests := []struct {
		name     string
		resp     *genai.GenerateContentResponse
		want     string
		wantCode string
	}{
		{name: "正常文本", resp: textResponse(genai.Text("hello")), want: "hello"},
		{name: "nil 响应", resp: nil, wantCode: common.ErrCodeEnvelope},
		{name: "没有候选", resp: &genai.GenerateContentResponse{}, wantCode: common.ErrCodeEnvelope},
		{
			name:     "候选没有内容",
			resp:     &genai.GenerateContentResponse{Candidates: []*genai.Candidate{{}}},
			wantCode: common.ErrCodeEnvelope,
		},
		{name: "没有片段", resp: textResponse(), wantCode: common.ErrCodeEnvelope},
		{
			name:     "只有非文本片段",
			resp:     textResponse(genai.Blob{MIMEType: "image/png", Data: []byte{1}}),
			wantCode: common.ErrCodeEnvelope,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := extractText(tt.resp)
			if tt.wantCode != "" {
				require.Error(t, err)
				assert.Equal(t, tt.wantCode, common.CodeOf(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

var _ net.Error = timeoutErr{}

func TestClassifyError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode string
	}{
		{name: "超时", err: context.DeadlineExceeded, wantCode: common.ErrCodeTransport},
		{name: "取消", err: fmt.Errorf("send: %w", context.Canceled), wantCode: common.ErrCodeTransport},
		{name: "网络错误", err: &net.OpError{Op: "dial", Err: timeoutErr{}}, wantCode: common.ErrCodeTransport},
		{name: "HTTP 状态码", err: &googleapi.Error{Code: 503, Message: "overloaded"}, wantCode: common.ErrCodeUpstreamStatus},
		{name: "被安全策略拦截", err: &genai.BlockedError{}, wantCode: common.ErrCodeEnvelope},
		{name: "未知错误", err: errors.New("boom"), wantCode: common.ErrCodeTransport},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := classifyError(tt.err)
			assert.Equal(t, tt.wantCode, common.CodeOf(got))
			assert.ErrorIs(t, got, tt.err)
		})
	}
}

func TestClient_GenerateClassifiesSendError(t *testing.T) {
	c := &Client{send: func(context.Context, []*genai.Content, []genai.Part) (*genai.GenerateContentResponse, error) {
		return nil, &googleapi.Error{Code: 429, Message: "quota"}
	}}

	_, err := c.Generate(context.Background(), []port.Message{{Role: "user", Parts: []string{"x"}}})
	assert.Equal(t, common.ErrCodeUpstreamStatus, common.CodeOf(err))
	assert.Contains(t, err.Error(), "429")
}

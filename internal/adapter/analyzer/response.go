package analyzer

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"portfolio-miner/internal/common"
	"portfolio-miner/internal/domain"
)

// FailureKind LLM 调用失败的类别
type FailureKind string

const (
	FailureTransport      FailureKind = "transport"       // 网络、超时、取消
	FailureUpstreamStatus FailureKind = "upstream_status" // 非 2xx
	FailureEnvelope       FailureKind = "envelope"        // 没有候选/片段/文本
	FailureDecode         FailureKind = "decode"          // JSON 解析失败
)

// KindOf 根据错误码归类；无法识别的错误按 transport 处理
func KindOf(err error) FailureKind {
	switch common.CodeOf(err) {
	case common.ErrCodeUpstreamStatus:
		return FailureUpstreamStatus
	case common.ErrCodeEnvelope:
		return FailureEnvelope
	case common.ErrCodeDecode:
		return FailureDecode
	default:
		return FailureTransport
	}
}

func failureReason(kind FailureKind, err error) string {
	switch kind {
	case FailureUpstreamStatus:
		return fmt.Sprintf("External API error: %v", err)
	case FailureEnvelope:
		return "Invalid external response structure."
	case FailureDecode:
		return fmt.Sprintf("JSON parsing failed: %v", err)
	default:
		return fmt.Sprintf("Network error during external analysis: %v", err)
	}
}

// rawAnalysis 接收 LLM 原始 JSON；字段类型尽量宽松
type rawAnalysis struct {
	Skills       stringList     `json:"skills"`
	Technologies stringList     `json:"technologies"`
	Achievements stringList     `json:"achievements"`
	Summary      string         `json:"summary"`
	Keywords     stringList     `json:"keywords"`
	Complexity   string         `json:"estimated_complexity_qualitative"`
	Metrics      map[string]any `json:"performance_metrics"`
}

// stringList 接受字符串数组或单个字符串
type stringList []string

func (l *stringList) UnmarshalJSON(data []byte) error {
	var single string
	if err := json.Unmarshal(data, &single); err == nil {
		if s := strings.TrimSpace(single); s != "" {
			*l = stringList{s}
		} else {
			*l = stringList{}
		}
		return nil
	}

	var items []any
	if err := json.Unmarshal(data, &items); err != nil {
		return err
	}
	out := make(stringList, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		s := strings.TrimSpace(fmt.Sprint(item))
		if s != "" {
			out = append(out, s)
		}
	}
	*l = out
	return nil
}

// parseResponse 去掉代码块标记后解析 JSON，失败时再尝试截取最外层 {...}
func parseResponse(raw string) (domain.AnalysisRecord, error) {
	text := stripFences(strings.TrimSpace(raw))
	if text == "" {
		return domain.AnalysisRecord{}, common.NewError(common.ErrCodeDecode, "LLM 返回为空")
	}

	var payload rawAnalysis
	err := json.Unmarshal([]byte(text), &payload)
	if err != nil {
		start := strings.Index(text, "{")
		end := strings.LastIndex(text, "}")
		if start == -1 || end <= start {
			return domain.AnalysisRecord{}, common.WrapError(common.ErrCodeDecode, "无法提取 JSON", err)
		}
		payload = rawAnalysis{}
		if err := json.Unmarshal([]byte(text[start:end+1]), &payload); err != nil {
			return domain.AnalysisRecord{}, common.WrapError(common.ErrCodeDecode, "JSON 解析失败", err)
		}
	}

	return domain.AnalysisRecord{
		Skills:             payload.Skills,
		Technologies:       payload.Technologies,
		Achievements:       payload.Achievements,
		Summary:            strings.TrimSpace(payload.Summary),
		Keywords:           payload.Keywords,
		Complexity:         domain.Complexity(payload.Complexity),
		PerformanceMetrics: numericMetrics(payload.Metrics),
	}.WithDefaults(), nil
}

func stripFences(text string) string {
	if strings.HasPrefix(text, "```") {
		if idx := strings.Index(text, "\n"); idx >= 0 {
			text = text[idx+1:]
		} else {
			text = strings.TrimPrefix(text, "```")
		}
	}
	text = strings.TrimSpace(text)
	text = strings.TrimSuffix(text, "```")
	return strings.TrimSpace(text)
}

// numericMetrics 只保留数值型指标
func numericMetrics(in map[string]any) map[string]float64 {
	out := make(map[string]float64, len(in))
	for k, v := range in {
		f, ok := v.(float64)
		if !ok || math.IsNaN(f) || math.IsInf(f, 0) {
			continue
		}
		out[k] = f
	}
	return out
}

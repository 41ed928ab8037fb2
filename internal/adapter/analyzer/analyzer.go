package analyzer

import (
	"context"
	"fmt"
	"sync"
	"time"

	"portfolio-miner/internal/domain"
	"portfolio-miner/internal/port"

	"github.com/sirupsen/logrus"
)

const (
	DefaultTimeout       = 5 * time.Minute
	DefaultMaxGoroutines = 3
)

// SemanticAnalyzer 实现了 port.Analyzer 接口
// 任何失败都收敛为降级结果，调用方永远拿到结构完整的 AnalysisRecord
type SemanticAnalyzer struct {
	generator     port.Generator
	timeout       time.Duration
	maxGoroutines int // 最大并发数
	log           *logrus.Entry
}

// Option 配置 SemanticAnalyzer
type Option func(*SemanticAnalyzer)

// WithTimeout 单次 LLM 调用的超时时间
func WithTimeout(d time.Duration) Option {
	return func(a *SemanticAnalyzer) {
		if d > 0 {
			a.timeout = d
		}
	}
}

// WithMaxGoroutines 同时进行的 LLM 调用数
func WithMaxGoroutines(n int) Option {
	return func(a *SemanticAnalyzer) {
		a.SetMaxGoroutines(n)
	}
}

// NewSemanticAnalyzer 创建新的分析器实例
func NewSemanticAnalyzer(generator port.Generator, opts ...Option) *SemanticAnalyzer {
	a := &SemanticAnalyzer{
		generator:     generator,
		timeout:       DefaultTimeout,
		maxGoroutines: DefaultMaxGoroutines,
		log:           logrus.WithField("component", "analyzer"),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// SetMaxGoroutines 设置最大并发数
func (a *SemanticAnalyzer) SetMaxGoroutines(max int) {
	if max > 0 {
		a.maxGoroutines = max
	}
}

// Analyze 分析单个仓库，永不失败
func (a *SemanticAnalyzer) Analyze(ctx context.Context, record domain.RepositoryRecord) domain.AnalysisRecord {
	name := record.Name
	if name == "" {
		name = "Unknown"
	}
	return a.run(ctx, name, BuildPrompt(record))
}

// AnalyzeDocument 分析简历等自由文本，结构与仓库分析结果一致
func (a *SemanticAnalyzer) AnalyzeDocument(ctx context.Context, label, text string) domain.AnalysisRecord {
	if label == "" {
		label = "document"
	}
	return a.run(ctx, label, BuildDocumentPrompt(label, text))
}

func (a *SemanticAnalyzer) run(ctx context.Context, name string, messages []port.Message) (out domain.AnalysisRecord) {
	log := a.log.WithField("project", name)
	// LLM 客户端或解析过程 panic 时同样降级
	defer func() {
		if r := recover(); r != nil {
			log.Errorf("❌ 分析过程 panic: %v", r)
			out = domain.FallbackAnalysis(name, fmt.Sprintf("Unexpected failure during external analysis: %v", r))
		}
	}()

	if a.generator == nil {
		log.Warn("⚠️ 未配置 LLM，使用降级结果")
		return domain.FallbackAnalysis(name, "No language model configured.")
	}

	callCtx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	start := time.Now()
	raw, err := a.generator.Generate(callCtx, messages)
	if err != nil {
		kind := KindOf(err)
		log.Warnf("❌ 分析失败 (%s): %v", kind, err)
		return domain.FallbackAnalysis(name, failureReason(kind, err))
	}

	analysis, err := parseResponse(raw)
	if err != nil {
		log.Warnf("❌ 无法解析 LLM 返回: %v | 原文: %.500s", err, raw)
		return domain.FallbackAnalysis(name, failureReason(FailureDecode, err))
	}

	log.Debugf("✅ 分析完成，耗时 %s", time.Since(start).Round(time.Millisecond))
	return analysis
}

type job struct {
	index  int
	record domain.RepositoryRecord
}

type result struct {
	index    int
	analysis domain.AnalysisRecord
}

// analyzeWorker 工作协程，处理单个仓库的分析
func (a *SemanticAnalyzer) analyzeWorker(ctx context.Context, jobs <-chan job, results chan<- result, wg *sync.WaitGroup, workerID int) {
	defer wg.Done()

	for j := range jobs {
		a.log.Debugf("[Worker-%d] 正在分析 %s...", workerID, j.record.FullName)
		results <- result{index: j.index, analysis: a.Analyze(ctx, j.record)}
	}
}

// AnalyzeAll 并发分析全部仓库；第 i 个结果对应第 i 个输入
// 单个仓库失败只影响它自己的结果
func (a *SemanticAnalyzer) AnalyzeAll(ctx context.Context, records []domain.RepositoryRecord) []domain.AnalysisRecord {
	out := make([]domain.AnalysisRecord, len(records))
	if len(records) == 0 {
		return out
	}

	workers := a.maxGoroutines
	if workers > len(records) {
		workers = len(records)
	}
	a.log.Infof("🤖 开始 LLM 分析，共 %d 个项目，最大并发数: %d", len(records), workers)

	jobs := make(chan job, len(records))
	results := make(chan result, len(records))

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go a.analyzeWorker(ctx, jobs, results, &wg, i+1)
	}

	for i, rec := range records {
		jobs <- job{index: i, record: rec}
	}
	close(jobs)

	wg.Wait()
	close(results)

	for r := range results {
		out[r.index] = r.analysis
	}

	a.log.Info("✅ LLM 分析完成")
	return out
}

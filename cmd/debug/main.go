package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"portfolio-miner/internal/adapter/analyzer"
	"portfolio-miner/internal/adapter/gemini"
	"portfolio-miner/internal/adapter/github"
	"portfolio-miner/internal/common"
	"portfolio-miner/internal/config"
	"portfolio-miner/internal/domain"
	"portfolio-miner/internal/logging"
	"portfolio-miner/internal/port"
	"portfolio-miner/internal/scoring"

	"github.com/spf13/cobra"
)

type debugFlags struct {
	configPath string
	skipLLM    bool
	document   string
}

func main() {
	if err := newDebugCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "❌", err)
		os.Exit(1)
	}
}

func newDebugCommand() *cobra.Command {
	flags := &debugFlags{}

	cmd := &cobra.Command{
		Use:           "debug [repo]",
		Short:         "调试模式：逐步展示单个仓库的抓取、prompt、分析和评分",
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(flags.configPath)
			if err != nil {
				return err
			}
			defer logging.Init(cfg.Logging)()

			if flags.document != "" {
				return debugDocument(cmd.Context(), cfg, flags)
			}
			if len(args) == 0 {
				return common.NewError(common.ErrCodeInvalidInput, "请指定仓库名，或使用 --document 分析文本文件")
			}
			return debugRepository(cmd.Context(), cfg, flags, args[0])
		},
	}

	cmd.Flags().StringVarP(&flags.configPath, "config", "c", "", "配置文件路径")
	cmd.Flags().BoolVar(&flags.skipLLM, "skip-llm", false, "只打印 prompt，不调用 LLM")
	cmd.Flags().StringVar(&flags.document, "document", "", "分析一个文本文件 (例如简历) 而不是仓库")
	return cmd
}

func debugRepository(ctx context.Context, cfg *config.Config, flags *debugFlags, name string) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	harvester, err := github.NewHarvester(cfg.GitHub.Token, github.WithConcurrency(cfg.GitHub.Concurrency))
	if err != nil {
		return err
	}

	fmt.Println("📥 正在抓取仓库...")
	// 调试时不过滤 star，私有仓库也包含在内
	records, err := harvester.Harvest(ctx, port.HarvestOptions{IncludePrivate: true})
	if err != nil {
		return err
	}

	record, ok := findRecord(records, name)
	if !ok {
		return common.NewError(common.ErrCodeInvalidInput, fmt.Sprintf("没有找到仓库 %s (共 %d 个)", name, len(records)))
	}

	fmt.Println("\n================ [ 1. 仓库快照 ] ================")
	fmt.Printf("名称: %s  |  ⭐ %d  |  🍴 %d  |  私有: %v\n", record.FullName, record.Stars, record.Forks, record.IsPrivate)
	fmt.Printf("语言: %s\n", strings.Join(record.LanguageNames(), ", "))
	fmt.Printf("依赖 (%d): %s\n", len(record.Dependencies), strings.Join(record.Dependencies, ", "))
	fmt.Printf("最后推送: %s  |  Notebook: %v  |  README %d 字节\n",
		record.LastPushedAt.Format(time.RFC3339), record.HasJupyterNotebooks, len(record.ReadmeContent))

	messages := analyzer.BuildPrompt(record)
	printPrompt(messages)

	analysis := domain.EmptyAnalysis()
	if !flags.skipLLM {
		semantic, closeFn, err := newAnalyzer(ctx, cfg)
		if err != nil {
			return err
		}
		defer closeFn()

		fmt.Println("\n🤖 正在调用 LLM...")
		analysis = semantic.Analyze(ctx, record)
		if err := printJSON("3. 分析结果", analysis); err != nil {
			return err
		}
	}

	policy, err := scoring.LoadPolicy(cfg.Scoring.PolicyFile)
	if err != nil {
		return err
	}
	engine := scoring.NewEngine(policy)
	if err := printJSON("4. 评分规则", engine.Policy()); err != nil {
		return err
	}
	return printJSON("5. 评分明细", engine.Breakdown(domain.Merge(record, analysis)))
}

func debugDocument(ctx context.Context, cfg *config.Config, flags *debugFlags) error {
	data, err := os.ReadFile(flags.document)
	if err != nil {
		return common.WrapError(common.ErrCodeInvalidInput, "读取文档失败", err)
	}

	printPrompt(analyzer.BuildDocumentPrompt(flags.document, string(data)))
	if flags.skipLLM {
		return nil
	}

	semantic, closeFn, err := newAnalyzer(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeFn()

	return printJSON("3. 分析结果", semantic.AnalyzeDocument(ctx, flags.document, string(data)))
}

func newAnalyzer(ctx context.Context, cfg *config.Config) (*analyzer.SemanticAnalyzer, func(), error) {
	client, err := gemini.NewClient(ctx, cfg.Gemini.APIKey, cfg.Gemini.Model)
	if err != nil {
		return nil, nil, err
	}
	fmt.Printf("🤖 使用模型: %s\n", client.Model())
	semantic := analyzer.NewSemanticAnalyzer(client,
		analyzer.WithTimeout(time.Duration(cfg.Gemini.TimeoutSeconds)*time.Second),
	)
	return semantic, func() { client.Close() }, nil
}

// findRecord 按仓库名或 owner/repo 查找，忽略大小写
func findRecord(records []domain.RepositoryRecord, name string) (domain.RepositoryRecord, bool) {
	for _, r := range records {
		if strings.EqualFold(r.Name, name) || strings.EqualFold(r.FullName, name) {
			return r, true
		}
	}
	return domain.RepositoryRecord{}, false
}

func printPrompt(messages []port.Message) {
	fmt.Println("\n================ [ 2. Prompt ] ================")
	for _, m := range messages {
		fmt.Printf("--- role: %s ---\n", m.Role)
		for _, part := range m.Parts {
			fmt.Println(part)
		}
	}
}

func printJSON(title string, v any) error {
	fmt.Printf("\n================ [ %s ] ================\n", title)
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}

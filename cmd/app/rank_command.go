package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"portfolio-miner/internal/config"
	"portfolio-miner/internal/domain"
	"portfolio-miner/internal/port"

	"github.com/spf13/cobra"
)

type rankFlags struct {
	includePrivate bool
	minStars       int
	top            int
	concurrency    int
	jsonOutput     bool
	dryRun         bool
	interval       time.Duration
}

// applyTo 命令行显式指定的参数覆盖配置
func (f *rankFlags) applyTo(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("include-private") {
		cfg.GitHub.IncludePrivate = f.includePrivate
	}
	if flags.Changed("min-stars") {
		cfg.GitHub.MinStars = f.minStars
	}
	if flags.Changed("top") {
		cfg.Pipeline.TopK = f.top
	}
	if flags.Changed("concurrency") {
		cfg.Pipeline.Concurrency = f.concurrency
	}
}

func harvestOptions(cfg *config.Config) port.HarvestOptions {
	return port.HarvestOptions{
		IncludePrivate: cfg.GitHub.IncludePrivate,
		MinStars:       cfg.GitHub.MinStars,
	}
}

// rankOutput --json 的输出结构
type rankOutput struct {
	RunID    string                 `json:"run_id"`
	Duration string                 `json:"duration"`
	Top      []domain.ScoredProject `json:"top"`
	Projects []domain.ScoredProject `json:"projects"`
}

func newRankCommand(ctx *commandContext) *cobra.Command {
	flags := &rankFlags{}

	cmd := &cobra.Command{
		Use:   "rank",
		Short: "抓取、分析、评分并输出排名前 K 的项目",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			flags.applyTo(cmd, cfg)
			if err := cfg.Validate(); err != nil {
				return err
			}

			runCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			p, err := buildPipeline(runCtx, cfg, flags.dryRun)
			if err != nil {
				return err
			}
			defer p.cleanup()

			opts := harvestOptions(cfg)
			return runScheduled(runCtx, flags.interval, func(c context.Context) error {
				result, err := p.runCycle(c, opts)
				if err != nil {
					return err
				}
				if flags.jsonOutput {
					return writeJSON(cmd, rankOutput{
						RunID:    result.RunID,
						Duration: result.Duration.String(),
						Top:      result.Top,
						Projects: result.Projects,
					})
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "🏆 排名前 %d 的项目 (共评估 %d 个, run=%s)\n", len(result.Top), len(result.Projects), result.RunID)
				fmt.Fprintln(out, renderTable(projectHeaders, projectRows(result.Top), projectAligns))
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&flags.includePrivate, "include-private", true, "包含私有仓库 (不受 star 限制)")
	cmd.Flags().IntVar(&flags.minStars, "min-stars", 0, "公开仓库的最低 star 数")
	cmd.Flags().IntVar(&flags.top, "top", 4, "输出的项目数")
	cmd.Flags().IntVar(&flags.concurrency, "concurrency", 3, "LLM 分析并发数")
	cmd.Flags().BoolVar(&flags.jsonOutput, "json", false, "以 JSON 输出")
	cmd.Flags().BoolVar(&flags.dryRun, "dry-run", false, "不保存也不推送")
	cmd.Flags().DurationVar(&flags.interval, "interval", 0, "定时执行间隔 (例如 6h)，0 表示只执行一次")
	return cmd
}

func newHarvestCommand(ctx *commandContext) *cobra.Command {
	var includePrivate bool
	var minStars int
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "harvest",
		Short: "只抓取仓库信息，不做分析",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("include-private") {
				cfg.GitHub.IncludePrivate = includePrivate
			}
			if cmd.Flags().Changed("min-stars") {
				cfg.GitHub.MinStars = minStars
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			harvester, err := newHarvester(cfg)
			if err != nil {
				return err
			}
			records, err := harvester.Harvest(cmd.Context(), harvestOptions(cfg))
			if err != nil {
				return err
			}

			if jsonOutput {
				return writeJSON(cmd, records)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "📦 共 %d 个仓库\n", len(records))
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(recordHeaders, recordRows(records), recordAligns))
			return nil
		},
	}

	cmd.Flags().BoolVar(&includePrivate, "include-private", true, "包含私有仓库")
	cmd.Flags().IntVar(&minStars, "min-stars", 0, "公开仓库的最低 star 数")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "以 JSON 输出")
	return cmd
}

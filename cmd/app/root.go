package main

import (
	"portfolio-miner/internal/config"
	"portfolio-miner/internal/logging"

	"github.com/spf13/cobra"
)

// skipConfigAnnotation 标记不需要读取配置的命令
const skipConfigAnnotation = "skipConfigLoad"

// commandContext 所有子命令共享的配置
type commandContext struct {
	configFlag *string
	cfg        *config.Config
	closeLog   func()
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	if c.cfg != nil {
		return c.cfg, nil
	}
	cfg, err := config.Load(*c.configFlag)
	if err != nil {
		return nil, err
	}
	c.cfg = cfg
	c.closeLog = logging.Init(cfg.Logging)
	return cfg, nil
}

func (c *commandContext) close() {
	if c.closeLog != nil {
		c.closeLog()
		c.closeLog = nil
	}
}

func newRootCommand() *cobra.Command {
	var configFlag string
	ctx := &commandContext{configFlag: &configFlag}

	rootCmd := &cobra.Command{
		Use:           "portfolio-miner",
		Short:         "抓取个人 GitHub 仓库，用 LLM 分析并挑出最值得展示的项目",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Annotations[skipConfigAnnotation] == "true" {
				return nil
			}
			_, err := ctx.ensureConfig()
			return err
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			ctx.close()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVarP(&configFlag, "config", "c", "", "配置文件路径")

	rootCmd.AddCommand(newRankCommand(ctx))
	rootCmd.AddCommand(newHarvestCommand(ctx))
	rootCmd.AddCommand(newLatestCommand(ctx))
	rootCmd.AddCommand(newHistoryCommand(ctx))
	rootCmd.AddCommand(newConfigCommand(ctx))

	return rootCmd
}

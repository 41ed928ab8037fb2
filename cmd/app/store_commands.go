package main

import (
	"fmt"

	"portfolio-miner/internal/common"

	"github.com/spf13/cobra"
)

func newLatestCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "latest",
		Short: "显示数据库中最近一次运行的排名",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			store, err := newStore(cfg)
			if err != nil {
				return err
			}

			projects, err := store.LatestRun(cmd.Context())
			if err != nil {
				return err
			}
			if jsonOutput {
				return writeJSON(cmd, projects)
			}
			if len(projects) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "📭 数据库是空的。请先运行 rank 生成一次排名！")
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(projectHeaders, projectRows(projects), projectAligns))
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "以 JSON 输出")
	return cmd
}

func newHistoryCommand(ctx *commandContext) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history <owner/repo>",
		Short: "显示某个仓库在历次运行中的得分",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if args[0] == "" {
				return common.NewError(common.ErrCodeInvalidInput, "仓库名不能为空")
			}
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			store, err := newStore(cfg)
			if err != nil {
				return err
			}

			projects, err := store.History(cmd.Context(), args[0], limit)
			if err != nil {
				return err
			}
			if len(projects) == 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "📭 没有 %s 的记录\n", args[0])
				return nil
			}

			rows := make([][]string, 0, len(projects))
			for i, p := range projects {
				rows = append(rows, []string{fmt.Sprintf("%d", i+1), fmt.Sprintf("%.2f", p.Score), string(p.Complexity), truncateRunes(p.Summary, summaryWidth)})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"#", "得分", "复杂度", "摘要"}, rows,
				[]columnAlignment{alignRight, alignRight, alignLeft, alignLeft},
			))
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 10, "最多显示的记录数")
	return cmd
}

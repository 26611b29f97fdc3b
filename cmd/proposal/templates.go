package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/kyeongry/fastmatch-admin-sub000/internal/app"
)

var templatesCmd = &cobra.Command{
	Use:   "templates",
	Short: "List the templates in the configured template directory",
	Args:  cobra.NoArgs,
	RunE:  runTemplates,
}

func init() {
	rootCmd.AddCommand(templatesCmd)
}

func runTemplates(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.RemoteTemplateURL != "" {
		return fmt.Errorf("remote template stores cannot be listed")
	}

	a, err := app.Build(cmd.Context(), cfg, logger(cmd.ErrOrStderr()))
	if err != nil {
		return err
	}
	defer a.Close()

	infos, err := a.Local.List(cmd.Context())
	if err != nil {
		return err
	}

	stages := map[string]string{
		cfg.Templates.Cover:      "cover",
		cfg.Templates.Service:    "service",
		cfg.Templates.Comparison: "comparison",
		cfg.Templates.Detail:     "detail",
	}
	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tFORMAT\tSIZE\tSTAGE")
	for _, info := range infos {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\n", info.ID, info.Format, info.Size, stages[info.ID])
	}
	return tw.Flush()
}

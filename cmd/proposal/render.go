package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/kyeongry/fastmatch-admin-sub000/internal/app"
	"github.com/kyeongry/fastmatch-admin-sub000/internal/config"
	"github.com/kyeongry/fastmatch-admin-sub000/internal/proposal"
)

var renderCmd = &cobra.Command{
	Use:   "render <dataset.json>",
	Short: "Render one proposal dataset to a PDF file",
	Args:  cobra.ExactArgs(1),
	RunE:  runRender,
}

func init() {
	renderCmd.Flags().StringP("output", "o", "", "output file or directory (default: proposal_<id>.pdf)")
	rootCmd.AddCommand(renderCmd)
}

func logger(w io.Writer) *slog.Logger {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

func loadConfig() (config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return config.Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return config.Config{}, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func readProposal(path string) (*proposal.Proposal, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var p proposal.Proposal
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &p, nil
}

// outputPath resolves the -o flag: empty means the working directory, a
// directory keeps the generated file name.
func outputPath(flag, fileName string) string {
	if flag == "" {
		return fileName
	}
	if info, err := os.Stat(flag); err == nil && info.IsDir() {
		return filepath.Join(flag, fileName)
	}
	return flag
}

func runRender(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	p, err := readProposal(args[0])
	if err != nil {
		return err
	}

	stderr := cmd.ErrOrStderr()
	a, err := app.Build(ctx, cfg, logger(stderr))
	if err != nil {
		return err
	}
	defer a.Close()

	gen := a.Generator()
	rep := newReporter(stderr)
	rep.Start(gen.Stages(len(p.Ordered())))
	res, err := gen.GenerateWithProgress(ctx, p, rep.Update)
	rep.Finish()
	if err != nil {
		return err
	}

	out, _ := cmd.Flags().GetString("output")
	path := outputPath(out, res.FileName)
	if err := os.WriteFile(path, res.Bytes, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s (%d pages)\n", path, res.PageCount)
	return nil
}

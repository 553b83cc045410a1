package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	storyapp "z-novel-storygen/internal/application/story"
	"z-novel-storygen/internal/config"
)

type runFlags struct {
	topic       string
	investment  float64
	rounds      int
	chapters    int
	length      int
	outputDir   string
	concurrency int
}

func newRunCmd() *cobra.Command {
	var f runFlags
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the pipeline once and write the document",
		Example: `  storygen run --topic "游戏高手" --investment 3 --n-round 3
  storygen run --topic "灯塔看守人" --chapters 5 --length 800 --concurrency 4`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			f.apply(cmd, cfg)
			return runOnce(cmd, cfg, f)
		},
	}

	fl := cmd.Flags()
	fl.StringVar(&f.topic, "topic", "", "story topic (default pipeline.default_topic)")
	fl.Float64Var(&f.investment, "investment", 0, "spend limit in USD, <= 0 for unlimited (default pipeline.investment)")
	fl.IntVar(&f.rounds, "n-round", 0, "round bound; fewer than 3 rounds stops before the document is written (default pipeline.rounds)")
	fl.IntVar(&f.chapters, "chapters", 0, "number of chapters in the outline (default pipeline.chapter_count)")
	fl.IntVar(&f.length, "length", 0, "target length of each chapter (default pipeline.chapter_length)")
	fl.StringVar(&f.outputDir, "output-dir", "", "directory for the document (default pipeline.output_dir)")
	fl.IntVar(&f.concurrency, "concurrency", 0, "chapters expanded in parallel (default pipeline.concurrency)")
	return cmd
}

// apply 把显式给出的参数写回配置
func (f runFlags) apply(cmd *cobra.Command, cfg *config.Config) {
	fl := cmd.Flags()
	if fl.Changed("topic") {
		cfg.Pipeline.DefaultTopic = f.topic
	}
	if fl.Changed("investment") {
		cfg.Pipeline.Investment = f.investment
	}
	if fl.Changed("n-round") {
		cfg.Pipeline.Rounds = f.rounds
	}
	if fl.Changed("chapters") {
		cfg.Pipeline.ChapterCount = f.chapters
	}
	if fl.Changed("length") {
		cfg.Pipeline.ChapterLength = f.length
	}
	if fl.Changed("output-dir") {
		cfg.Pipeline.OutputDir = f.outputDir
	}
	if fl.Changed("concurrency") {
		cfg.Pipeline.Concurrency = f.concurrency
	}
}

func runOnce(cmd *cobra.Command, cfg *config.Config, f runFlags) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg, appOptions{serviceName: cfg.App.Name + "-run"})
	if err != nil {
		return err
	}
	defer a.Close(context.WithoutCancel(ctx))

	p := cfg.Pipeline
	run, result, err := a.story.RunNow(ctx, storyapp.SubmitRequest{
		Topic:         p.DefaultTopic,
		Investment:    nonZero(p.Investment),
		Rounds:        p.Rounds,
		ChapterCount:  p.ChapterCount,
		ChapterLength: p.ChapterLength,
		Concurrency:   p.Concurrency,
	})
	if err != nil {
		if run != nil {
			return fmt.Errorf("run %s failed: %w", run.ID, err)
		}
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "run:        %s\n", run.ID)
	fmt.Fprintf(out, "document:   %s\n", result.ArtifactPath)
	fmt.Fprintf(out, "chapters:   %d\n", result.Chapters)
	fmt.Fprintf(out, "characters: %d\n", result.Runes)
	return nil
}

// nonZero 把 0 投入映射为负数，表示不限额且不被默认值替换
func nonZero(investment float64) float64 {
	if investment == 0 {
		return -1
	}
	return investment
}

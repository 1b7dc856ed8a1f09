// Command memeforge generates branded social content and memes: business
// document ingestion, trend detection, platform drafting, template
// selection, brand styling, caption generation and ranking, rendering, and
// optional animation.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/rektlabs/memeforge/internal/config"
	"github.com/rektlabs/memeforge/internal/flows"
	"github.com/rektlabs/memeforge/internal/llm"
	"github.com/rektlabs/memeforge/internal/logging"
	"github.com/rektlabs/memeforge/internal/runstore"
)

// CLI flags
var (
	runIDFlag         string
	overridesFlag     string
	skipAnimationFlag bool
)

var rootCmd = &cobra.Command{
	Use:   "memeforge",
	Short: "AI-driven branded social content and meme generation",
	Long: `Memeforge turns a directory of business documents into branded social
content: it detects trending topics, drafts platform posts, selects and
brands a meme template, generates and ranks caption candidates, and renders
the final meme.

Work is organized into runs under the output directory. Each flow persists
its output so later flows (and retries) can resume from it.

Examples:
  memeforge text
  memeforge meme --run-id run_20260830_120301_ab12
  memeforge animation --run-id run_20260830_120301_ab12
  memeforge all -o "platforms=twitter,twitter_premium=true"
  memeforge runs`,
	SilenceUsage: true,
}

var textCmd = &cobra.Command{
	Use:   "text",
	Short: "Ingest business context, detect trends, and draft platform posts",
	RunE: func(cmd *cobra.Command, args []string) error {
		r, err := newRunner(cmd.Context())
		if err != nil {
			return err
		}
		runID, err := r.RunText(cmd.Context(), runIDFlag)
		return report(runID, flows.FlowText, err)
	},
}

var memeCmd = &cobra.Command{
	Use:   "meme",
	Short: "Generate the branded meme from a run's drafted content",
	RunE: func(cmd *cobra.Command, args []string) error {
		r, err := newRunner(cmd.Context())
		if err != nil {
			return err
		}
		runID, err := r.RunMeme(cmd.Context(), runIDFlag)
		return report(runID, flows.FlowMeme, err)
	},
}

var animationCmd = &cobra.Command{
	Use:   "animation",
	Short: "Animate a run's rendered meme",
	RunE: func(cmd *cobra.Command, args []string) error {
		if runIDFlag == "" {
			return fmt.Errorf("animation requires --run-id naming a run with meme output")
		}
		r, err := newRunner(cmd.Context())
		if err != nil {
			return err
		}
		runID, err := r.RunAnimation(cmd.Context(), runIDFlag)
		return report(runID, flows.FlowAnimation, err)
	},
}

var allCmd = &cobra.Command{
	Use:   "all",
	Short: "Run every stage as one pipeline in a fresh run",
	RunE: func(cmd *cobra.Command, args []string) error {
		r, err := newRunner(cmd.Context())
		if err != nil {
			return err
		}
		runID, err := r.RunAll(cmd.Context())
		return report(runID, flows.FlowAll, err)
	},
}

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List existing runs",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.Load()
		cfg.ApplyOverrides(overridesFlag)
		store, err := runstore.New(cfg.OutputPath)
		if err != nil {
			return err
		}
		runs, err := store.ListRuns()
		if err != nil {
			return err
		}
		if len(runs) == 0 {
			fmt.Println("no runs yet")
			return nil
		}
		for _, id := range runs {
			fmt.Println(id)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&runIDFlag, "run-id", "", "Existing run to resume or extend")
	rootCmd.PersistentFlags().StringVarP(&overridesFlag, "override", "o", "", `Config overrides as "key=value,key=value"`)
	rootCmd.PersistentFlags().BoolVar(&skipAnimationFlag, "skip-animation", false, "Skip the animation stage")
	rootCmd.AddCommand(textCmd, memeCmd, animationCmd, allCmd, runsCmd)
}

func main() {
	logging.Init()
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// newRunner assembles the flow runner from config, overrides, and the Gemini
// client.
func newRunner(ctx context.Context) (*flows.Runner, error) {
	cfg := config.Load()
	cfg.ApplyOverrides(overridesFlag)
	if skipAnimationFlag {
		cfg.SkipAnimation = true
	}

	gen, err := llm.NewGemini(ctx)
	if err != nil {
		return nil, err
	}
	return flows.NewRunner(cfg, gen)
}

// report logs the outcome and surfaces the run ID so users can chain flows.
func report(runID, flow string, err error) error {
	if err != nil {
		log.Error().Err(err).Str("flow", flow).Str("run_id", runID).Msg("Flow failed")
		return err
	}
	log.Info().Str("flow", flow).Str("run_id", runID).Msg("Flow completed")
	fmt.Println(runID)
	return nil
}

package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"trendwave-pipeline/01_topics"
	"trendwave-pipeline/config"
	"trendwave-pipeline/pipeline"

	"github.com/spf13/cobra"
)

type options struct {
	ConfigFile string
	Date       string
	Yes        bool
	NoUpload   bool
	ApproveCmd string
}

var opts options

var rootCmd = &cobra.Command{
	Use:          "trendwave",
	Short:        "Render today's trending topics into vertical shorts and upload them",
	SilenceUsage: true,
	Args:         cobra.NoArgs,
	PreRunE:      validateFlags,
	RunE:         runPipeline,
}

func init() {
	rootCmd.Flags().StringVarP(&opts.ConfigFile, "config", "c", "config.yaml", "path to the YAML config file")
	rootCmd.Flags().StringVar(&opts.Date, "date", "", "run for this day instead of today (YYYY-MM-DD)")
	rootCmd.Flags().BoolVarP(&opts.Yes, "yes", "y", false, "upload every artifact without asking")
	rootCmd.Flags().BoolVar(&opts.NoUpload, "no-upload", false, "never upload; keep artifacts local")
	rootCmd.Flags().StringVar(&opts.ApproveCmd, "approve-cmd", "", "external approval hook; exit 0 approves the upload ($"+pipeline.ArtifactEnv+" holds the artifact path)")
}

func validateFlags(cmd *cobra.Command, args []string) error {
	set := 0
	for _, on := range []bool{opts.Yes, opts.NoUpload, opts.ApproveCmd != ""} {
		if on {
			set++
		}
	}
	if set > 1 {
		return fmt.Errorf("--yes, --no-upload and --approve-cmd are mutually exclusive")
	}
	if opts.Date != "" {
		if _, err := time.Parse(topics.DateLayout, opts.Date); err != nil {
			return fmt.Errorf("invalid --date %q: want YYYY-MM-DD", opts.Date)
		}
	}
	return nil
}

// confirmer maps the upload flags onto a confirmation strategy
func confirmer(o options) (pipeline.Confirmer, error) {
	switch {
	case o.Yes:
		return pipeline.AutoConfirmer{Answer: true}, nil
	case o.NoUpload:
		return pipeline.AutoConfirmer{Answer: false}, nil
	case o.ApproveCmd != "":
		return pipeline.NewCommandConfirmer(o.ApproveCmd)
	}
	return pipeline.NewConsoleConfirmer(), nil
}

// runDate resolves --date, defaulting to the local calendar day
func runDate(o options, now time.Time) (time.Time, error) {
	if o.Date == "" {
		return now, nil
	}
	return time.ParseInLocation(topics.DateLayout, o.Date, now.Location())
}

func runPipeline(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(opts.ConfigFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.EnsureDirs(); err != nil {
		return err
	}

	confirm, err := confirmer(opts)
	if err != nil {
		return err
	}
	day, err := runDate(opts, time.Now())
	if err != nil {
		return err
	}

	stages, err := pipeline.DefaultStages(cfg, confirm)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	_, err = pipeline.New(cfg, stages).Run(ctx, day)
	return err
}

// Execute runs the root command
func Execute() error {
	return rootCmd.ExecuteContext(context.Background())
}

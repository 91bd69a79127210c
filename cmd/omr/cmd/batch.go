package cmd

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/MeKo-Tech/omr/internal/batch"
	"github.com/MeKo-Tech/omr/internal/pipeline"
)

// batchCmd represents the batch command.
var batchCmd = &cobra.Command{
	Use:   "batch [directory]",
	Short: "Read every answer sheet in a directory",
	Long: `Discover and read all supported sheet images under a directory.

Sheets are processed with a worker pool; one unreadable sheet is reported
and skipped without aborting the rest of the run.

Examples:
  omr batch ./scans
  omr batch ./scans --recursive --format csv --output results.csv
  omr batch ./scans --annotated-dir ./review --include 'exam_*.png'`,
	Args:         cobra.MaximumNArgs(1),
	SilenceUsage: true,
	RunE:         runBatchCommand,
}

func runBatchCommand(cmd *cobra.Command, args []string) error {
	root := "."
	if len(args) == 1 {
		root = args[0]
	}

	cfg := GetConfig()

	pl, err := buildPipeline(cfg)
	if err != nil {
		return err
	}

	bCfg := cfg.ToBatchConfig()
	if include, _ := cmd.Flags().GetStringSlice("include"); len(include) > 0 {
		bCfg.IncludePatterns = include
	}
	if exclude, _ := cmd.Flags().GetStringSlice("exclude"); len(exclude) > 0 {
		bCfg.ExcludePatterns = exclude
	}

	paths, err := batch.DiscoverSheets(root, bCfg)
	if err != nil {
		return err
	}
	if len(paths) == 0 {
		return errors.New("no sheet images found")
	}

	progress := &pipeline.ThrottledProgress{
		Inner:    &pipeline.ConsoleProgress{},
		Interval: 200 * time.Millisecond,
	}

	res, err := batch.ProcessBatch(cmd.Context(), pl, paths, bCfg, progress)
	if err != nil {
		return err
	}

	if bCfg.OutputFile != "" {
		if err := batch.SaveResults(res, bCfg.OutputFile, bCfg.Format); err != nil {
			return err
		}
	} else {
		out, err := batch.FormatResults(res, bCfg.Format)
		if err != nil {
			return err
		}
		fmt.Fprint(cmd.OutOrStdout(), out)
	}

	batch.PrintStats(res)

	// ContinueOnError keeps sibling sheets processing; a failed sheet still
	// means a non-zero exit.
	if res.Failed > 0 {
		return fmt.Errorf("%d sheet(s) failed", res.Failed)
	}
	return nil
}

func addBatchFlags(cmd *cobra.Command) {
	cmd.Flags().StringP("format", "f", "text", "output format (text, json, csv)")
	cmd.Flags().StringP("output", "o", "", "results file (default: stdout)")
	cmd.Flags().IntP("questions", "q", 63, "number of questions on the sheet")
	cmd.Flags().IntP("workers", "w", 4, "worker pool size")
	cmd.Flags().BoolP("recursive", "r", false, "descend into subdirectories")
	cmd.Flags().Bool("continue-on-error", true, "keep going after a sheet fails")
	cmd.Flags().String("annotated-dir", "", "directory to write annotated overlay images")
	cmd.Flags().Bool("thumbnails", true, "shrink annotated copies to thumbnail size")
	cmd.Flags().StringSlice("include", nil, "filename glob patterns to include")
	cmd.Flags().StringSlice("exclude", nil, "filename glob patterns to exclude")
}

// bindBatchFlags binds all flags to viper configuration keys.
func bindBatchFlags(cmd *cobra.Command) {
	flagBindings := []struct {
		key  string
		flag string
	}{
		{"output.format", "format"},
		{"output.file", "output"},
		{"output.annotated_dir", "annotated-dir"},
		{"pipeline.questions", "questions"},
		{"batch.workers", "workers"},
		{"batch.recursive", "recursive"},
		{"batch.continue_on_error", "continue-on-error"},
		{"batch.save_thumbnails", "thumbnails"},
	}

	for _, binding := range flagBindings {
		if err := viper.BindPFlag(binding.key, cmd.Flags().Lookup(binding.flag)); err != nil {
			panic(fmt.Sprintf("failed to bind flag %s: %v", binding.flag, err))
		}
	}
}

func init() {
	rootCmd.AddCommand(batchCmd)

	addBatchFlags(batchCmd)
	bindBatchFlags(batchCmd)
}

package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/MeKo-Tech/omr/internal/batch"
	"github.com/MeKo-Tech/omr/internal/pipeline"
	"github.com/MeKo-Tech/omr/internal/utils"
)

const (
	outputFormatJSON = "json"
	outputFormatCSV  = "csv"
	outputFormatText = "text"
)

// scanCmd represents the scan command.
var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Read one or more scanned answer sheets",
	Long: `Read scanned answer sheet images and print one result line per sheet.

Supported formats: JPEG, PNG, BMP, TIFF

The default text output prints "<student-id> <form> <answers>" per sheet,
where answers is a comma-separated list with "_" for unanswered questions
and "AMBIG" for ambiguous ones.

Examples:
  omr scan sheet.jpg
  omr scan scans/*.png --format json
  omr scan sheet.jpg --questions 40 --annotated-dir ./review`,
	Args:         cobra.ArbitraryArgs,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) == 0 {
			return errors.New("no input files provided")
		}

		cfg := GetConfig()

		pl, err := buildPipeline(cfg)
		if err != nil {
			return err
		}

		for _, path := range args {
			if !utils.IsSupportedImage(path) {
				return fmt.Errorf("unsupported image file: %s", path)
			}
		}

		bCfg := cfg.ToBatchConfig()
		bCfg.Workers = pl.Config().Parallel.MaxWorkers

		var progress pipeline.ProgressCallback = pipeline.NoOpProgress{}
		if cfg.Verbose {
			progress = &pipeline.ConsoleProgress{}
		}

		res, err := batch.ProcessBatch(cmd.Context(), pl, args, bCfg, progress)
		if err != nil {
			return err
		}

		out, err := batch.FormatResults(res, cfg.Output.Format)
		if err != nil {
			return err
		}

		if cfg.Output.File != "" {
			if err := batch.SaveResults(res, cfg.Output.File, cfg.Output.Format); err != nil {
				return err
			}
		} else {
			fmt.Fprint(cmd.OutOrStdout(), out)
		}

		// ContinueOnError keeps sibling sheets processing; a failed sheet
		// still means a non-zero exit.
		if res.Failed > 0 {
			return fmt.Errorf("%d sheet(s) failed", res.Failed)
		}
		return nil
	},
}

func addScanFlags(cmd *cobra.Command) {
	cmd.Flags().StringP("format", "f", "text", "output format (text, json, csv)")
	cmd.Flags().StringP("output", "o", "", "output file (default: stdout)")
	cmd.Flags().IntP("questions", "q", 63, "number of questions on the sheet")
	cmd.Flags().String("mode", "red", "intensity mode: luma or red")
	cmd.Flags().String("threshold-method", "otsu", "binarization method: fixed or otsu")
	cmd.Flags().Float64("threshold", 0.5, "fixed binarization threshold (0..1)")
	cmd.Flags().Float64("filled-threshold", 0.27, "minimum fill score to count a bubble as marked (0..1)")
	cmd.Flags().Float64("separation-margin", 0.10, "score margin below which two marks are ambiguous (0..1)")
	cmd.Flags().Float64("max-residual", 5.0, "registration residual tolerance in pixels")
	cmd.Flags().Int("timeout", 30, "per-sheet timeout in seconds")
	cmd.Flags().String("annotated-dir", "", "directory to write annotated overlay images")
	cmd.Flags().Bool("thumbnails", true, "shrink annotated copies to thumbnail size")
	cmd.Flags().IntP("workers", "w", 0, "worker count for multiple sheets (0 = all CPUs)")
}

// bindScanFlags binds all flags to viper configuration keys.
func bindScanFlags(cmd *cobra.Command) {
	flagBindings := []struct {
		key  string
		flag string
	}{
		{"output.format", "format"},
		{"output.file", "output"},
		{"output.annotated_dir", "annotated-dir"},
		{"pipeline.questions", "questions"},
		{"pipeline.normalize.mode", "mode"},
		{"pipeline.normalize.method", "threshold-method"},
		{"pipeline.normalize.threshold", "threshold"},
		{"pipeline.classify.filled_threshold", "filled-threshold"},
		{"pipeline.classify.separation_margin", "separation-margin"},
		{"pipeline.register.max_residual", "max-residual"},
		{"pipeline.timeout_sec", "timeout"},
		{"pipeline.parallel.max_workers", "workers"},
		{"batch.save_thumbnails", "thumbnails"},
	}

	for _, binding := range flagBindings {
		if err := viper.BindPFlag(binding.key, cmd.Flags().Lookup(binding.flag)); err != nil {
			panic(fmt.Sprintf("failed to bind flag %s: %v", binding.flag, err))
		}
	}
}

func init() {
	rootCmd.AddCommand(scanCmd)

	addScanFlags(scanCmd)
	bindScanFlags(scanCmd)
}

// GetScanCommand returns the scan command for testing purposes.
func GetScanCommand() *cobra.Command {
	return scanCmd
}

package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/MeKo-Tech/omr/internal/pdf"
	"github.com/MeKo-Tech/omr/internal/pipeline"
)

// pageResult pairs a PDF page with its scan outcome for output.
type pageResult struct {
	Page   int              `json:"page"`
	Result *pipeline.Result `json:"result,omitempty"`
	Error  string           `json:"error,omitempty"`
}

// pdfCmd represents the pdf command.
var pdfCmd = &cobra.Command{
	Use:   "pdf [file.pdf]",
	Short: "Read answer sheets from a scanned PDF",
	Long: `Extract page images from a PDF and read each page as one answer sheet.

Useful for document scanners that bundle a whole stack of sheets into a
single PDF. Pages that fail to register are reported and skipped.

Examples:
  omr pdf stack.pdf
  omr pdf stack.pdf --pages 1-10 --format json
  omr pdf stack.pdf --questions 40`,
	Args:         cobra.ExactArgs(1),
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := GetConfig()

		pl, err := buildPipeline(cfg)
		if err != nil {
			return err
		}

		pageRange, _ := cmd.Flags().GetString("pages")

		scans, err := pdf.ExtractScans(args[0], pageRange)
		if err != nil {
			return err
		}
		if len(scans) == 0 {
			return errors.New("no page images found in PDF")
		}

		pages := make([]pageResult, 0, len(scans))
		failed := 0
		for _, scan := range scans {
			page := pageResult{Page: scan.Page}
			res, err := pl.ProcessContext(cmd.Context(), scan.Image)
			if err != nil {
				page.Error = err.Error()
				failed++
			} else {
				page.Result = res
			}
			pages = append(pages, page)
		}

		out := cmd.OutOrStdout()
		if cfg.Output.Format == outputFormatJSON {
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			if err := enc.Encode(pages); err != nil {
				return err
			}
		} else {
			var b strings.Builder
			for _, p := range pages {
				if p.Result == nil {
					fmt.Fprintf(&b, "# page %d: %s\n", p.Page, p.Error)
					continue
				}
				id := p.Result.TrimmedID()
				if id == "" {
					id = "unknown"
				}
				fmt.Fprintf(&b, "%s %d %s\n", id, p.Result.FormNumber, p.Result.AnswerLine())
			}
			fmt.Fprint(out, b.String())
		}

		// Failing pages are reported above and skipped, but the run itself
		// still exits non-zero.
		if failed > 0 {
			return fmt.Errorf("%d of %d page(s) failed", failed, len(pages))
		}
		return nil
	},
}

func addPdfFlags(cmd *cobra.Command) {
	cmd.Flags().StringP("format", "f", "text", "output format (text, json)")
	cmd.Flags().StringP("pages", "p", "", "page range, e.g. '1-5' or '1,3,5' (default: all)")
	cmd.Flags().IntP("questions", "q", 63, "number of questions on the sheet")
}

// bindPdfFlags binds all flags to viper configuration keys.
func bindPdfFlags(cmd *cobra.Command) {
	flagBindings := []struct {
		key  string
		flag string
	}{
		{"output.format", "format"},
		{"pipeline.questions", "questions"},
	}

	for _, binding := range flagBindings {
		if err := viper.BindPFlag(binding.key, cmd.Flags().Lookup(binding.flag)); err != nil {
			panic(fmt.Sprintf("failed to bind flag %s: %v", binding.flag, err))
		}
	}
}

func init() {
	rootCmd.AddCommand(pdfCmd)

	addPdfFlags(pdfCmd)
	bindPdfFlags(pdfCmd)
}

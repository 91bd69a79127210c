package batch

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// FormatResults renders a batch result in the requested format.
func FormatResults(res *Result, format string) (string, error) {
	switch format {
	case "json":
		return formatJSON(res)
	case "csv":
		return formatCSV(res)
	case "text", "":
		return formatText(res), nil
	default:
		return "", fmt.Errorf("unknown output format: %s", format)
	}
}

func formatJSON(res *Result) (string, error) {
	bts, err := json.MarshalIndent(res, "", "  ")
	if err != nil {
		return "", err
	}
	return string(bts) + "\n", nil
}

func formatCSV(res *Result) (string, error) {
	rows := [][]string{{"file", "student_id", "form", "answers", "error"}}
	for _, f := range res.Files {
		if f.Result == nil {
			rows = append(rows, []string{f.Path, "", "", "", f.Error})
			continue
		}
		rows = append(rows, []string{
			f.Path,
			f.Result.TrimmedID(),
			strconv.Itoa(f.Result.FormNumber),
			f.Result.AnswerLine(),
			"",
		})
	}

	var output strings.Builder
	writer := csv.NewWriter(&output)
	for _, row := range rows {
		if err := writer.Write(row); err != nil {
			return "", err
		}
	}
	writer.Flush()
	return output.String(), writer.Error()
}

// formatText renders the original one-line-per-sheet output:
// "<id> <form> <answers>".
func formatText(res *Result) string {
	var output strings.Builder
	for _, f := range res.Files {
		if f.Result == nil {
			fmt.Fprintf(&output, "# %s: %s\n", f.Path, f.Error)
			continue
		}
		id := f.Result.TrimmedID()
		if id == "" {
			id = "unknown"
		}
		fmt.Fprintf(&output, "%s %d %s\n", id, f.Result.FormNumber, f.Result.AnswerLine())
	}
	return output.String()
}

// SaveResults writes the formatted batch result to a file.
func SaveResults(res *Result, path, format string) error {
	out, err := FormatResults(res, format)
	if err != nil {
		return err
	}
	return os.WriteFile(path, []byte(out), 0o600)
}

// PrintStats writes a run summary to stderr.
func PrintStats(res *Result) {
	fmt.Fprintf(os.Stderr, "Processed %d sheet(s), %d failed, %.2fs total\n",
		res.Processed, res.Failed, float64(res.DurationNs)/1e9)
}

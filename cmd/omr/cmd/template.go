package cmd

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/MeKo-Tech/omr/internal/template"
)

// templateCmd groups form-template utilities.
var templateCmd = &cobra.Command{
	Use:   "template",
	Short: "Inspect and export form templates",
	Long: `Inspect the built-in form templates and export them as YAML starting
points for custom layouts.

Examples:
  omr template list
  omr template show answersheet-63
  omr template export answersheet-63 --output myform.yaml`,
}

var templateListCmd = &cobra.Command{
	Use:          "list",
	Short:        "List built-in form templates",
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		builtin := template.Builtin()
		names := make([]string, 0, len(builtin))
		for name := range builtin {
			names = append(names, name)
		}
		sort.Strings(names)

		for _, name := range names {
			t := builtin[name]
			fmt.Fprintf(cmd.OutOrStdout(), "%s\t%d options, up to %d questions, %d ID characters\n",
				name, t.Options(), t.Capacity(), t.ID.Chars)
		}
		return nil
	},
}

var templateShowCmd = &cobra.Command{
	Use:          "show [name]",
	Short:        "Print a template as YAML",
	Args:         cobra.ExactArgs(1),
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		t, err := template.Get(args[0])
		if err != nil {
			return err
		}
		data, err := yaml.Marshal(t)
		if err != nil {
			return err
		}
		_, err = cmd.OutOrStdout().Write(data)
		return err
	},
}

var templateExportCmd = &cobra.Command{
	Use:          "export [name]",
	Short:        "Write a template to a YAML file",
	Args:         cobra.ExactArgs(1),
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		t, err := template.Get(args[0])
		if err != nil {
			return err
		}
		out, _ := cmd.Flags().GetString("output")
		if out == "" {
			out = t.Name + ".yaml"
		}
		if err := t.Save(out); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", out)
		return nil
	},
}

var templateValidateCmd = &cobra.Command{
	Use:          "validate [file.yaml]",
	Short:        "Validate a template file",
	Args:         cobra.ExactArgs(1),
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		t, err := template.Load(args[0])
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s: valid (%d options, up to %d questions)\n",
			args[0], t.Options(), t.Capacity())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(templateCmd)

	templateExportCmd.Flags().StringP("output", "o", "", "output file (default: <name>.yaml)")

	templateCmd.AddCommand(templateListCmd)
	templateCmd.AddCommand(templateShowCmd)
	templateCmd.AddCommand(templateExportCmd)
	templateCmd.AddCommand(templateValidateCmd)
}

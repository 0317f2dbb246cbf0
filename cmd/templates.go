package cmd

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/ziadkadry99/popup-studio/internal/catalog"
	"github.com/ziadkadry99/popup-studio/internal/record"
)

var templatesCmd = &cobra.Command{
	Use:     "templates",
	Aliases: []string{"template", "tpl"},
	Short:   "Browse the popup template catalog",
}

var templatesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List registered templates",
	RunE: func(cmd *cobra.Command, args []string) error {
		reg, err := newRegistry()
		if err != nil {
			return err
		}
		return printEntries(reg.List())
	},
}

var templatesSearchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Fuzzy-search templates by id, name and description",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		reg, err := newRegistry()
		if err != nil {
			return err
		}
		entries := reg.Search(strings.Join(args, " "))
		if len(entries) == 0 {
			fmt.Println("No matching templates.")
			return nil
		}
		return printEntries(entries)
	},
}

var templatesShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show a template's fields and defaults",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		reg, err := newRegistry()
		if err != nil {
			return err
		}
		t, ok := reg.Get(args[0])
		if !ok {
			return fmt.Errorf("%w: %s", catalog.ErrTemplateNotFound, args[0])
		}

		fmt.Printf("%s %s (%s)\n%s\n\n", t.Icon(), t.Name(), args[0], t.Description())
		if rf, ok := t.(catalog.RequiredFielder); ok {
			fmt.Printf("Required: %s\n\n", strings.Join(rf.RequiredFields(), ", "))
		}
		fmt.Println("Defaults:")
		out, err := yamlString(t.DefaultConfig())
		if err != nil {
			return err
		}
		fmt.Print(indent(out, "  "))
		return nil
	},
}

func printEntries(entries []catalog.Entry) error {
	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tFORM\tDESCRIPTION")
	for _, e := range entries {
		form := "-"
		if e.HasForm {
			form = "yes"
		}
		fmt.Fprintf(tw, "%s\t%s %s\t%s\t%s\n", e.ID, e.Icon, e.Name, form, e.Description)
	}
	return tw.Flush()
}

// yamlString renders a configuration the way a --config-file is written.
func yamlString(cfg record.Record) (string, error) {
	out, err := yaml.Marshal(map[string]any(cfg))
	if err != nil {
		return "", err
	}
	return string(out), nil
}

func indent(s, prefix string) string {
	lines := strings.SplitAfter(s, "\n")
	for i, l := range lines {
		if l != "" {
			lines[i] = prefix + l
		}
	}
	return strings.Join(lines, "")
}

func init() {
	templatesCmd.AddCommand(templatesListCmd, templatesSearchCmd, templatesShowCmd)
	rootCmd.AddCommand(templatesCmd)
}

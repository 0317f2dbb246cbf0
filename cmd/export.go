package cmd

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/ziadkadry99/popup-studio/internal/export"
	"github.com/ziadkadry99/popup-studio/internal/progress"
)

var (
	exportOut     string
	exportInclude []string
	exportExclude []string
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write saved widgets to disk as standalone HTML documents",
	Long: `Writes one HTML document per saved widget plus a manifest.json index.
Object names are matched against --include and --exclude glob patterns
(doublestar syntax, e.g. "Kitchen/**").`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if cfg.Remote() {
			return errors.New("export reads the local workspace; run it on the server host")
		}
		reg, err := newRegistry()
		if err != nil {
			return err
		}
		p, err := openPersistence(cfg, reg)
		if err != nil {
			return err
		}
		defer p.close()

		opts := export.Options{
			OutputDir: cfg.Export.OutputDir,
			Filter:    export.Filter{Include: cfg.Export.Include, Exclude: cfg.Export.Exclude},
			Reporter:  progress.NewReporter("Exporting widgets"),
		}
		if cmd.Flags().Changed("out") || opts.OutputDir == "" {
			opts.OutputDir = exportOut
		}
		if cmd.Flags().Changed("include") {
			opts.Filter.Include = exportInclude
		}
		if cmd.Flags().Changed("exclude") {
			opts.Filter.Exclude = exportExclude
		}

		manifest, err := export.Run(cmd.Context(), p.store, opts)
		if err != nil {
			return err
		}
		fmt.Printf("Exported %d widgets to %s\n", len(manifest.Widgets), filepath.Join(opts.OutputDir, export.ManifestName))
		return nil
	},
}

func init() {
	exportCmd.Flags().StringVarP(&exportOut, "out", "o", "widgets", "output directory")
	exportCmd.Flags().StringSliceVar(&exportInclude, "include", nil, "only export objects matching these patterns")
	exportCmd.Flags().StringSliceVar(&exportExclude, "exclude", nil, "skip objects matching these patterns")
	rootCmd.AddCommand(exportCmd)
}

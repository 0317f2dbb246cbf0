package cmd

import (
	"github.com/spf13/cobra"

	"github.com/ziadkadry99/popup-studio/internal/config"
)

var (
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "popupstudio",
	Short: "Author interactive popups for objects in a 3D scene",
	Long: `Popup Studio builds the popups shown when a visitor clicks an object in a
3D scene. Pick a template, fill in its fields with a live preview, and save a
standalone widget (markup, scoped style and a self-registering script) that
the scene loads on its own.`,
	SilenceUsage: true,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", config.DefaultPath, "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}

package cli

import (
	"log/slog"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var (
	// version can be overridden at build time via:
	// go build -ldflags "-X github.com/KafClaw/creatorhook/internal/cli.version=1.2.3"
	version = "0.4.0"
	logo    = "\n" +
		`                     _             _                 _` + "\n" +
		`  ___ _ __ ___  __ _| |_ ___  _ __| |__   ___   ___ | | __` + "\n" +
		` / __| '__/ _ \/ _` + "`" + ` | __/ _ \| '__| '_ \ / _ \ / _ \| |/ /` + "\n" +
		`| (__| | |  __/ (_| | || (_) | |  | | | | (_) | (_) |   <` + "\n" +
		` \___|_|  \___|\__,_|\__\___/|_|  |_| |_|\___/ \___/|_|\_\` + "\n"
)

var verbose bool

var rootCmd = &cobra.Command{
	Use:   "creatorhook",
	Short: "creatorhook - chat with the creator assistant webhook",
	Long:  color.CyanString(logo) + "\nSends chat turns to the assistant webhook and decodes whatever it answers.",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if verbose {
			slog.SetLogLoggerLevel(slog.LevelDebug)
		}
	},
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log decoder stages and session events")
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(decodeCmd)
	rootCmd.AddCommand(chatCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(statsCmd)
}

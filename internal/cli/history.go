package cli

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/KafClaw/creatorhook/internal/config"
	"github.com/KafClaw/creatorhook/internal/timeline"
)

var (
	historyTrace string
	historyRole  string
	historyLimit int
	historyJSON  bool
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recent chat turns, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		svc, err := openTimeline(cfg)
		if err != nil {
			return err
		}
		defer svc.Close()

		turns, err := svc.ListTurns(timeline.FilterArgs{
			TraceID: historyTrace,
			Role:    historyRole,
			Limit:   historyLimit,
		})
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if historyJSON {
			if turns == nil {
				turns = []timeline.Turn{}
			}
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			enc.SetEscapeHTML(false)
			return enc.Encode(turns)
		}
		if len(turns) == 0 {
			fmt.Fprintln(out, "No turns recorded yet.")
			return nil
		}
		for _, t := range turns {
			fmt.Fprintln(out, formatTurn(t))
		}
		return nil
	},
}

func formatTurn(t timeline.Turn) string {
	ts := t.CreatedAt.Local().Format("2006-01-02 15:04:05")
	content := strings.ReplaceAll(t.Content, "\n", " ⏎ ")
	var role string
	switch t.Role {
	case timeline.RoleUser:
		role = color.CyanString("%-9s", t.Role)
	case timeline.RoleError:
		role = color.RedString("%-9s", t.Role)
	default:
		role = color.GreenString("%-9s", t.Role)
	}
	line := fmt.Sprintf("%s %s %s %s", ts, shortID(t.TraceID), role, content)
	if t.DecodeStage != "" {
		line += color.HiBlackString(" [%s/%s]", t.DecodeStage, t.Shape)
	}
	return line
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func init() {
	historyCmd.Flags().StringVar(&historyTrace, "trace", "", "Only show turns of this trace ID")
	historyCmd.Flags().StringVar(&historyRole, "role", "", "Only show turns with this role (user, assistant, error)")
	historyCmd.Flags().IntVar(&historyLimit, "limit", 20, "Maximum number of turns")
	historyCmd.Flags().BoolVar(&historyJSON, "json", false, "Print turns as JSON")
}

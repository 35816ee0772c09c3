package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/KafClaw/creatorhook/internal/chat"
	"github.com/KafClaw/creatorhook/internal/config"
	"github.com/KafClaw/creatorhook/internal/timeline"
)

var statsJSON bool

type statsReport struct {
	Status string                `json:"status"`
	Turns  map[string]int        `json:"turns"`
	Stages []timeline.StageCount `json:"stages"`
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show which decoder stages produced the recorded replies",
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

		report := statsReport{Stages: []timeline.StageCount{}}
		if report.Status, err = svc.GetSetting(chat.StatusSettingKey); err != nil {
			return err
		}
		if report.Status == "" {
			report.Status = string(chat.StatusOnline)
		}
		if report.Turns, err = svc.CountByRole(); err != nil {
			return err
		}
		stages, err := svc.StageStats()
		if err != nil {
			return err
		}
		if stages != nil {
			report.Stages = stages
		}

		out := cmd.OutOrStdout()
		if statsJSON {
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(report)
		}

		printHeader(out, "📊 creatorhook stats")
		fmt.Fprintf(out, "Status:     %s\n", report.Status)
		fmt.Fprintf(out, "User turns: %d\n", report.Turns[timeline.RoleUser])
		fmt.Fprintf(out, "Replies:    %d\n", report.Turns[timeline.RoleAssistant])
		fmt.Fprintf(out, "Errors:     %d\n", report.Turns[timeline.RoleError])
		if len(report.Stages) == 0 {
			return nil
		}
		total := report.Turns[timeline.RoleAssistant]
		fmt.Fprintln(out, "\nReplies by decoder stage:")
		for _, s := range report.Stages {
			pct := 0.0
			if total > 0 {
				pct = float64(s.Count) * 100 / float64(total)
			}
			fmt.Fprintf(out, "  %-10s %5d  %5.1f%%\n", s.Stage, s.Count, pct)
		}
		return nil
	},
}

func init() {
	statsCmd.Flags().BoolVar(&statsJSON, "json", false, "Print stats as JSON")
}

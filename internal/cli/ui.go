package cli

import (
	"fmt"
	"io"

	"github.com/fatih/color"

	"github.com/KafClaw/creatorhook/internal/bus"
)

func printHeader(w io.Writer, title string) {
	fmt.Fprintln(w, color.CyanString(logo))
	if title != "" {
		fmt.Fprintln(w, title)
		fmt.Fprintln(w, "─────────────────────")
	}
}

// printBubble renders a chat bubble: replies in green, errors in red.
func printBubble(w io.Writer, m *bus.OutboundMessage) {
	if m.IsError() {
		fmt.Fprintln(w, color.RedString(m.Content))
		return
	}
	fmt.Fprintln(w, color.GreenString("🤖 ")+m.Content)
	if verbose && m.Stage != "" {
		fmt.Fprintln(w, color.HiBlackString("   decoded by %s stage", m.Stage))
	}
}

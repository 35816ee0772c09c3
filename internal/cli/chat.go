package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/KafClaw/creatorhook/internal/bus"
	"github.com/KafClaw/creatorhook/internal/chat"
	"github.com/KafClaw/creatorhook/internal/config"
	"github.com/KafClaw/creatorhook/internal/relay"
)

var (
	chatAudio string
	chatMime  string
)

// bubbleWait bounds how long a one-shot turn waits for its bubble to print.
const bubbleWait = 2 * time.Second

var chatCmd = &cobra.Command{
	Use:   "chat [message]",
	Short: "Send a chat turn to the assistant webhook",
	Long: "Sends one text or audio turn and prints the decoded reply.\n" +
		"Without a message or --audio, starts an interactive session reading stdin.",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		if err := cfg.Validate(true); err != nil {
			return err
		}

		client, err := newWebhookClient(cfg)
		if err != nil {
			return err
		}

		store, err := openTimeline(cfg)
		if err != nil {
			return err
		}
		defer store.Close()

		pub := relay.New(cfg.Relay)
		defer pub.Close()

		mb := bus.NewMessageBus()
		out := cmd.OutOrStdout()
		bubbles := make(chan *bus.OutboundMessage, 8)
		mb.Subscribe(bus.ChannelChat, func(m *bus.OutboundMessage) {
			printBubble(out, m)
			bubbles <- m
		})

		session, err := chat.NewSession(chat.Config{
			Dispatcher:  client,
			Decoder:     newDecoder(cfg),
			Store:       store,
			Publisher:   pub,
			Bus:         mb,
			UserID:      cfg.Webhook.UserID,
			Cooldown:    cfg.Chat.Cooldown,
			ErrorPrefix: cfg.Chat.ErrorPrefix,
		})
		if err != nil {
			return err
		}
		defer session.Close()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		go mb.DispatchOutbound(ctx)

		switch {
		case chatAudio != "":
			audio, err := os.ReadFile(chatAudio)
			if err != nil {
				return fmt.Errorf("read audio: %w", err)
			}
			_, sendErr := session.SendAudio(ctx, audio, audioMime(chatAudio, chatMime))
			return awaitBubble(bubbles, sendErr)
		case len(args) > 0:
			_, sendErr := session.SendText(ctx, strings.Join(args, " "))
			return awaitBubble(bubbles, sendErr)
		default:
			return interactive(ctx, cmd.InOrStdin(), out, session, bubbles)
		}
	},
}

// awaitBubble waits for the turn's bubble so it prints before the command
// exits. Failures before dispatch produce no bubble and return immediately.
func awaitBubble(bubbles <-chan *bus.OutboundMessage, sendErr error) error {
	if errors.Is(sendErr, chat.ErrEmptyMessage) || errors.Is(sendErr, chat.ErrBusy) {
		return sendErr
	}
	select {
	case <-bubbles:
	case <-time.After(bubbleWait):
	}
	return sendErr
}

func interactive(ctx context.Context, in io.Reader, out io.Writer, session *chat.Session, bubbles <-chan *bus.OutboundMessage) error {
	printHeader(out, "💬 creatorhook chat (Ctrl+D to quit)")
	go session.Run(ctx)

	sc := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, color.CyanString("você › "))
		if !sc.Scan() {
			fmt.Fprintln(out)
			return sc.Err()
		}
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		if err := session.Submit(ctx, line); err != nil {
			return err
		}
		select {
		case <-bubbles:
		case <-ctx.Done():
			return nil
		}
	}
}

// audioMime prefers an explicit --mime, then the file extension.
func audioMime(path, explicit string) string {
	if explicit != "" {
		return explicit
	}
	if t := mime.TypeByExtension(strings.ToLower(filepath.Ext(path))); t != "" {
		return t
	}
	return "application/octet-stream"
}

func init() {
	chatCmd.Flags().StringVar(&chatAudio, "audio", "", "Send the given audio file instead of text")
	chatCmd.Flags().StringVar(&chatMime, "mime", "", "MIME type of --audio (default: from extension)")
}

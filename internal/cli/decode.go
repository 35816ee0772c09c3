package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/KafClaw/creatorhook/internal/config"
)

var decodeJSON bool

var decodeCmd = &cobra.Command{
	Use:   "decode [file]",
	Short: "Decode a raw webhook payload from a file or stdin",
	Long: "Runs a raw webhook body through the decoder cascade and prints the reply.\n" +
		"Reads stdin when no file (or \"-\") is given.",
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		raw, err := readPayload(cmd, args)
		if err != nil {
			return err
		}
		cfg, err := config.Load()
		if err != nil {
			return err
		}

		res, err := newDecoder(cfg).Decode(string(raw))
		if err != nil {
			return fmt.Errorf("decode: %w", err)
		}

		out := cmd.OutOrStdout()
		if decodeJSON {
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			enc.SetEscapeHTML(false)
			return enc.Encode(res)
		}
		fmt.Fprintln(out, res.Message)
		return nil
	},
}

func readPayload(cmd *cobra.Command, args []string) ([]byte, error) {
	if len(args) == 0 || args[0] == "-" {
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return nil, fmt.Errorf("read stdin: %w", err)
		}
		return data, nil
	}
	data, err := os.ReadFile(args[0])
	if err != nil {
		return nil, fmt.Errorf("read payload: %w", err)
	}
	return data, nil
}

func init() {
	decodeCmd.Flags().BoolVar(&decodeJSON, "json", false, "Print message, stage and shape as JSON")
}

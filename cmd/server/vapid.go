package main

import (
	"fmt"

	"github.com/dmitrijs2005/academyhub/internal/server/notify/webpush"
	"github.com/spf13/cobra"
)

var vapidCmd = &cobra.Command{
	Use:   "generate-vapid-keys",
	Short: "Generate VAPID keys for web push notifications",
	Long: `Generate VAPID keys for web push notifications.

Add the generated keys to the webpush section of the configuration.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		privateKey, publicKey, err := webpush.GenerateVAPIDKeys()
		if err != nil {
			return fmt.Errorf("failed to generate VAPID keys: %w", err)
		}

		out := cmd.OutOrStdout()
		fmt.Fprintln(out, "webpush:")
		fmt.Fprintln(out, "  enabled: true")
		fmt.Fprintln(out, `  subject: "mailto:admin@example.com"`)
		fmt.Fprintf(out, "  private_key: %q\n", privateKey)
		fmt.Fprintf(out, "  public_key: %q\n", publicKey)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(vapidCmd)
}

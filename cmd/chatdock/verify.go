package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/chatdock/chatdock/internal/verify"
)

// VerifyCmd runs the live protocol scenarios against a real Chromium engine.
// Requires a Chrome or Chromium binary on PATH.
func VerifyCmd() *cobra.Command {
	var headed bool

	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Verify the Enter-fix protocol against a real browser engine",
		Long: `Launches Chromium, installs the same probe script the shell injects,
and drives real keyboard input through the DevTools protocol to check the
full suppress-and-reinject round trip.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Println("Running live scenarios (this launches a browser)...")

			results, err := verify.Run(cmd.Context(), !headed)
			if err != nil {
				return fmt.Errorf("verify: %w", err)
			}

			failed := 0
			for _, r := range results {
				if r.OK {
					fmt.Printf("  \033[32m✓\033[0m %s\n", r.Name)
				} else {
					failed++
					fmt.Printf("  \033[31m✗\033[0m %s\n", r.Name)
					if r.Detail != "" {
						fmt.Printf("      %s\n", r.Detail)
					}
				}
			}

			if failed > 0 {
				fmt.Printf("\n\033[31m%d scenario(s) failed.\033[0m\n", failed)
				os.Exit(1)
			}
			fmt.Println("\n\033[32mAll scenarios passed.\033[0m")
			return nil
		},
	}

	cmd.Flags().BoolVar(&headed, "headed", false, "run with a visible browser window")
	return cmd
}

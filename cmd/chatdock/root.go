package cli

import (
	"github.com/spf13/cobra"

	"github.com/chatdock/chatdock/internal/config"
	"github.com/chatdock/chatdock/internal/devlog"
)

// AppVersion is stamped at build time via -ldflags.
var AppVersion = "dev"

// Shared CLI flags
var (
	configPath  string
	urlOverride string
	verbose     bool
)

// SetupRootCmd configures the root command with all subcommands and flags.
func SetupRootCmd(cfg *config.Config) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "chatdock",
		Short: "ChatDock - desktop shell for your web chat",
		Long: `ChatDock wraps a web chat application in a native window with a system
tray, a global show/hide hotkey, and a fix for the webview's stale
IME composition flag that otherwise swallows Enter keystrokes.

Just type 'chatdock' to open the window.`,
		Version: AppVersion,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if configPath != "" {
				if c, err := config.LoadFile(configPath); err == nil {
					*cfg = *c
				} else {
					devlog.Printf("[Config] cannot load %s: %v\n", configPath, err)
				}
			}
			if verbose || cfg.Debug {
				devlog.Enable()
			}
		},
		Run: func(cmd *cobra.Command, args []string) {
			if urlOverride != "" {
				cfg.ChatURL = urlOverride
			}
			RunDesktop(cfg)
		},
	}

	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "settings file to use instead of the default")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.Flags().StringVar(&urlOverride, "url", "", "chat URL to load (overrides config)")

	rootCmd.AddCommand(DoctorCmd())
	rootCmd.AddCommand(VerifyCmd())

	return rootCmd
}

package main

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/crewclaw/crewclaw/pkg/config"
	"github.com/crewclaw/crewclaw/pkg/logger"
)

var (
	version   = "dev"
	gitCommit string
	buildTime string
)

func formatVersion() string {
	v := version
	if gitCommit != "" {
		v += fmt.Sprintf(" (git: %s)", gitCommit)
	}
	return v
}

func main() {
	var (
		flagWorkspace string
		flagModel     string
		flagMessage   string
		flagDebug     bool
	)

	root := &cobra.Command{
		Use:   "crewclaw",
		Short: "Multi-agent coding assistant with a shared task board",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if flagWorkspace != "" {
				abs, err := filepath.Abs(flagWorkspace)
				if err != nil {
					return fmt.Errorf("resolving workspace: %w", err)
				}
				cfg.Workspace = abs
			}
			if flagModel != "" {
				cfg.Model = flagModel
			}
			if flagDebug {
				cfg.LogLevel = "DEBUG"
			}
			logger.SetLevel(logger.ParseLevel(cfg.LogLevel))
			if cfg.LogFile != "" {
				if err := logger.EnableFileLogging(cfg.LogFile); err != nil {
					logger.WarnCF("main", "File logging disabled",
						map[string]any{"error": err.Error()})
				}
			}

			app, err := newApp(cfg)
			if err != nil {
				return err
			}
			defer app.Close()

			if flagMessage != "" {
				return app.RunOnce(cmd.Context(), flagMessage)
			}
			return app.RunREPL(cmd.Context())
		},
		SilenceUsage: true,
	}

	root.Flags().StringVarP(&flagWorkspace, "workspace", "w", "", "workspace directory")
	root.Flags().StringVar(&flagModel, "model", "", "model override")
	root.Flags().StringVarP(&flagMessage, "message", "m", "", "run a single message and exit")
	root.Flags().BoolVarP(&flagDebug, "debug", "d", false, "enable debug logging")

	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("crewclaw %s\n", formatVersion())
			if buildTime != "" {
				fmt.Printf("  Build: %s\n", buildTime)
			}
			fmt.Printf("  Go: %s\n", runtime.Version())
		},
	})

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/small-frappuccino/zealox/pkg/app"
	"github.com/small-frappuccino/zealox/pkg/util"
	"github.com/spf13/cobra"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Fatal: %v\n", err)
		os.Exit(1)
	}
}

type flags struct {
	configPath  string
	dataDir     string
	dbPath      string
	controlAddr string
	logLevel    string
	theme       string
}

func newRootCmd() *cobra.Command {
	var f flags
	root := &cobra.Command{
		Use:           "zealox",
		Short:         "Modular Discord bot for matchdays, stream banners and staff lists",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, err := util.LoadSettings()
			if err != nil {
				return err
			}
			f.apply(cmd, &settings)
			return app.Run(cmd.Context(), settings)
		},
	}

	pf := root.Flags()
	pf.StringVarP(&f.configPath, "config", "c", "", "path to config.json (env ZEALOX_CONFIG)")
	pf.StringVar(&f.dataDir, "data-dir", "", "directory for logs, modules and the database (env ZEALOX_DATA_DIR)")
	pf.StringVar(&f.dbPath, "db", "", "SQLite database path (env ZEALOX_DB_PATH)")
	pf.StringVar(&f.controlAddr, "control-addr", "", "listen address of the HTTP control API, empty disables it (env ZEALOX_CONTROL_ADDR)")
	pf.StringVar(&f.logLevel, "log-level", "", "DEBUG, INFO, WARNING or ERROR (env LOG_LEVEL)")
	pf.StringVar(&f.theme, "theme", "", "embed color theme (env ZEALOX_THEME)")

	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), "zealox", app.Version)
		},
	})
	return root
}

// apply overrides settings with the flags given on the command line.
func (f flags) apply(cmd *cobra.Command, s *util.Settings) {
	changed := cmd.Flags().Changed
	if changed("config") {
		s.ConfigPath = f.configPath
	}
	if changed("data-dir") {
		// Keep the default database next to the new data dir.
		if s.DBPath == filepath.Join(s.DataDir, "data", "bot.db") {
			s.DBPath = filepath.Join(f.dataDir, "data", "bot.db")
		}
		s.DataDir = f.dataDir
	}
	if changed("db") {
		s.DBPath = f.dbPath
	}
	if changed("control-addr") {
		s.ControlAddr = f.controlAddr
	}
	if changed("log-level") {
		s.LogLevel = f.logLevel
	}
	if changed("theme") {
		s.Theme = f.theme
	}
}

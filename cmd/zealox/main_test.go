package main

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"github.com/small-frappuccino/zealox/pkg/util"
)

func TestFlagsOverrideSettings(t *testing.T) {
	cmd := newRootCmd()
	if err := cmd.ParseFlags([]string{"--data-dir", "/srv/zealox", "--log-level", "DEBUG", "--control-addr", "127.0.0.1:8089"}); err != nil {
		t.Fatalf("parse flags: %v", err)
	}
	s := util.Settings{
		ConfigPath: "config.json",
		DataDir:    ".",
		DBPath:     filepath.Join(".", "data", "bot.db"),
		LogLevel:   "INFO",
	}
	var f flags
	f.dataDir, _ = cmd.Flags().GetString("data-dir")
	f.logLevel, _ = cmd.Flags().GetString("log-level")
	f.controlAddr, _ = cmd.Flags().GetString("control-addr")
	f.apply(cmd, &s)

	if s.DataDir != "/srv/zealox" {
		t.Errorf("DataDir = %q", s.DataDir)
	}
	if want := filepath.Join("/srv/zealox", "data", "bot.db"); s.DBPath != want {
		t.Errorf("DBPath = %q, want %q", s.DBPath, want)
	}
	if s.LogLevel != "DEBUG" || s.ControlAddr != "127.0.0.1:8089" {
		t.Errorf("settings = %+v", s)
	}
	if s.ConfigPath != "config.json" {
		t.Errorf("unset flag changed ConfigPath to %q", s.ConfigPath)
	}
}

func TestExplicitDBPathSurvivesDataDir(t *testing.T) {
	cmd := newRootCmd()
	if err := cmd.ParseFlags([]string{"--data-dir", "/srv/zealox"}); err != nil {
		t.Fatal(err)
	}
	s := util.Settings{DataDir: ".", DBPath: "/var/lib/zealox.db"}
	flags{dataDir: "/srv/zealox"}.apply(cmd, &s)
	if s.DBPath != "/var/lib/zealox.db" {
		t.Fatalf("DBPath = %q", s.DBPath)
	}
}

func TestVersionCommand(t *testing.T) {
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"version"})
	if err := cmd.Execute(); err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(out.String(), "zealox ") {
		t.Fatalf("output = %q", out.String())
	}
}

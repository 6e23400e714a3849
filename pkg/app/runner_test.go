package app

import (
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/small-frappuccino/zealox/pkg/features/matchday"
	"github.com/small-frappuccino/zealox/pkg/features/stafflist"
	"github.com/small-frappuccino/zealox/pkg/features/streambanner"
)

func TestCatalogRegistersFeatures(t *testing.T) {
	got := Catalog().Names()
	want := []string{matchday.Name, stafflist.Name, streambanner.Name}
	sort.Strings(want)
	if len(got) != len(want) {
		t.Fatalf("names = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("names = %v, want %v", got, want)
		}
	}
}

func TestEnsureDirs(t *testing.T) {
	dir := t.TempDir()
	if err := ensureDirs(dir, ""); err != nil {
		t.Fatalf("ensureDirs: %v", err)
	}
	for _, d := range []string{
		"modules/matchday/zwischenspeicher",
		"modules/streambanner/spielmodi",
		"modules/streambanner/temp",
		"logs",
		"data",
	} {
		info, err := os.Stat(filepath.Join(dir, d))
		if err != nil || !info.IsDir() {
			t.Fatalf("%s missing: %v", d, err)
		}
	}
}

func TestEnsureDirsAbsoluteModulePath(t *testing.T) {
	dataDir := t.TempDir()
	modDir := filepath.Join(t.TempDir(), "mods")
	if err := ensureDirs(dataDir, modDir); err != nil {
		t.Fatalf("ensureDirs: %v", err)
	}
	if _, err := os.Stat(filepath.Join(modDir, "matchday")); err != nil {
		t.Fatalf("absolute module path not used: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dataDir, "modules")); !os.IsNotExist(err) {
		t.Fatalf("default module dir created under data dir")
	}
}

package theme

import (
	"fmt"
	"sync"
)

// Color is the int value used by discordgo.MessageEmbed.Color
type Color = int

// Theme holds all color roles used by embeds across modules.
// If a module needs a very specific color, add a role here so themes can
// override it explicitly.
type Theme struct {
	// Human-friendly name for the theme (unique within the registry).
	Name string

	// Core roles
	Primary Color
	Info    Color
	Success Color
	Warning Color
	Loading Color
	Error   Color
	Muted   Color

	// Admin
	ModuleList Color
	BotStatus  Color
	Help       Color

	// Feature modules
	Wizard      Color // matchday/streambanner wizard messages
	MemberList  Color // fallback for member lists without a valid color
	ListMissing Color // orange hints (missing font, missing fields)
}

// Clone returns a copy of the Theme.
func (t *Theme) Clone() *Theme {
	cp := *t
	return &cp
}

// ensureDefaults fills zero-valued fields from related roles so themes can
// override only a subset of fields.
func (t *Theme) ensureDefaults() {
	if t.Primary == 0 {
		t.Primary = 0x5865F2
	}
	if t.Info == 0 {
		t.Info = 0x3498DB
	}
	if t.Success == 0 {
		t.Success = 0x2ECC71
	}
	if t.Warning == 0 {
		t.Warning = 0xF59E0B
	}
	if t.Loading == 0 {
		t.Loading = 0xFEE75C
	}
	if t.Error == 0 {
		t.Error = 0xE74C3C
	}
	if t.Muted == 0 {
		t.Muted = 0x99AAB5
	}

	if t.ModuleList == 0 {
		t.ModuleList = t.Success
	}
	if t.BotStatus == 0 {
		t.BotStatus = t.Info
	}
	if t.Help == 0 {
		t.Help = t.Info
	}
	if t.Wizard == 0 {
		t.Wizard = t.Info
	}
	if t.MemberList == 0 {
		t.MemberList = t.Primary
	}
	if t.ListMissing == 0 {
		t.ListMissing = 0xE67E22
	}
}

func defaultTheme() *Theme {
	th := &Theme{Name: "default"}
	th.ensureDefaults()
	return th
}

var (
	mu        sync.RWMutex
	registry  = map[string]*Theme{}
	currentTh = defaultTheme()
)

// Register adds a theme to the registry. It returns an error if the name is empty or already registered.
func Register(t *Theme) error {
	if t == nil {
		return fmt.Errorf("theme: cannot register nil theme")
	}
	if t.Name == "" {
		return fmt.Errorf("theme: name is required")
	}
	cp := t.Clone()
	cp.ensureDefaults()

	mu.Lock()
	defer mu.Unlock()
	if _, exists := registry[cp.Name]; exists {
		return fmt.Errorf("theme: theme %q already registered", cp.Name)
	}
	registry[cp.Name] = cp
	return nil
}

// SetCurrent switches the active theme by name. An empty name restores the default.
func SetCurrent(name string) error {
	mu.Lock()
	defer mu.Unlock()
	if name == "" || name == "default" {
		currentTh = defaultTheme()
		return nil
	}
	th, ok := registry[name]
	if !ok {
		return fmt.Errorf("theme: theme %q not found", name)
	}
	currentTh = th.Clone()
	return nil
}

// Current returns a copy of the current theme.
func Current() *Theme {
	mu.RLock()
	defer mu.RUnlock()
	return currentTh.Clone()
}

func Primary() Color     { return Current().Primary }
func Info() Color        { return Current().Info }
func Success() Color     { return Current().Success }
func Warning() Color     { return Current().Warning }
func Loading() Color     { return Current().Loading }
func Error() Color       { return Current().Error }
func Muted() Color       { return Current().Muted }
func ModuleList() Color  { return Current().ModuleList }
func BotStatus() Color   { return Current().BotStatus }
func Help() Color        { return Current().Help }
func Wizard() Color      { return Current().Wizard }
func MemberList() Color  { return Current().MemberList }
func ListMissing() Color { return Current().ListMissing }

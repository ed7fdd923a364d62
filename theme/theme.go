// Package theme implements the theme preference service: light, dark, auto and
// custom modes applied to a document.Root, persisted through a suiteprefs.Store.
package theme

import (
	"fmt"
	"regexp"

	"github.com/CreativeUnicorns/suiteprefs"
)

// Mode is the user-selected theme mode.
type Mode string

const (
	ModeLight  Mode = "light"
	ModeDark   Mode = "dark"
	ModeAuto   Mode = "auto"
	ModeCustom Mode = "custom"
)

// Valid reports whether m is one of the four known modes.
func (m Mode) Valid() bool {
	switch m {
	case ModeLight, ModeDark, ModeAuto, ModeCustom:
		return true
	}
	return false
}

// ParseMode validates s as a Mode.
func ParseMode(s string) (Mode, error) {
	m := Mode(s)
	if !m.Valid() {
		return "", fmt.Errorf("%w: %q", suiteprefs.ErrInvalidMode, s)
	}
	return m, nil
}

// Root classes and meta colors applied per effective theme.
const (
	ClassLight  = "theme-light"
	ClassDark   = "theme-dark"
	ClassCustom = "theme-custom"

	MetaColorLight = "#ffffff"
	MetaColorDark  = "#111827"
)

var modeClasses = []string{ClassLight, ClassDark, ClassCustom}

// Colors maps the twelve color roles of a custom theme to hex values.
type Colors struct {
	Primary       string `json:"primary" yaml:"primary"`
	Secondary     string `json:"secondary" yaml:"secondary"`
	Accent        string `json:"accent" yaml:"accent"`
	Background    string `json:"background" yaml:"background"`
	Surface       string `json:"surface" yaml:"surface"`
	Text          string `json:"text" yaml:"text"`
	TextSecondary string `json:"textSecondary" yaml:"textSecondary"`
	Border        string `json:"border" yaml:"border"`
	Error         string `json:"error" yaml:"error"`
	Warning       string `json:"warning" yaml:"warning"`
	Success       string `json:"success" yaml:"success"`
	Info          string `json:"info" yaml:"info"`
}

// CustomTheme is a named palette.
type CustomTheme struct {
	Name   string `json:"name" yaml:"name"`
	Colors Colors `json:"colors" yaml:"colors"`
}

// Role binds a color role to its CSS custom property.
type Role struct {
	Name        string
	CSSVariable string
	Value       string
}

// Roles lists the twelve roles in their canonical order.
func (c Colors) Roles() []Role {
	return []Role{
		{"primary", "--color-primary", c.Primary},
		{"secondary", "--color-secondary", c.Secondary},
		{"accent", "--color-accent", c.Accent},
		{"background", "--color-background", c.Background},
		{"surface", "--color-surface", c.Surface},
		{"text", "--color-text", c.Text},
		{"textSecondary", "--color-text-secondary", c.TextSecondary},
		{"border", "--color-border", c.Border},
		{"error", "--color-error", c.Error},
		{"warning", "--color-warning", c.Warning},
		{"success", "--color-success", c.Success},
		{"info", "--color-info", c.Info},
	}
}

// CSSVariables returns the custom property names a custom theme sets.
func CSSVariables() []string {
	roles := Colors{}.Roles()
	out := make([]string, len(roles))
	for i, r := range roles {
		out[i] = r.CSSVariable
	}
	return out
}

var hexColor = regexp.MustCompile(`^#(?:[0-9a-fA-F]{3}|[0-9a-fA-F]{4}|[0-9a-fA-F]{6}|[0-9a-fA-F]{8})$`)

// Validate requires every role to hold a hex color.
func (c Colors) Validate() error {
	for _, r := range c.Roles() {
		if r.Value == "" {
			return fmt.Errorf("%w: missing color %q", suiteprefs.ErrIncompleteTheme, r.Name)
		}
		if !hexColor.MatchString(r.Value) {
			return fmt.Errorf("%w: color %q is not a hex value: %q", suiteprefs.ErrIncompleteTheme, r.Name, r.Value)
		}
	}
	return nil
}

// Validate requires a name and a complete palette.
func (t *CustomTheme) Validate() error {
	if t == nil {
		return fmt.Errorf("%w: no theme", suiteprefs.ErrIncompleteTheme)
	}
	if t.Name == "" {
		return fmt.Errorf("%w: missing name", suiteprefs.ErrIncompleteTheme)
	}
	return t.Colors.Validate()
}

func (t *CustomTheme) clone() *CustomTheme {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}

// State is what subscribers receive on every change.
type State struct {
	Mode      Mode         `json:"mode"`
	Effective Mode         `json:"effective"`
	Custom    *CustomTheme `json:"custom,omitempty"`
}

var predefined = []CustomTheme{
	{
		Name: "Ocean Blue",
		Colors: Colors{
			Primary: "#0ea5e9", Secondary: "#0284c7", Accent: "#06b6d4",
			Background: "#0c1222", Surface: "#162033",
			Text: "#e2e8f0", TextSecondary: "#94a3b8", Border: "#334155",
			Error: "#ef4444", Warning: "#f59e0b", Success: "#10b981", Info: "#3b82f6",
		},
	},
	{
		Name: "Forest Green",
		Colors: Colors{
			Primary: "#10b981", Secondary: "#059669", Accent: "#34d399",
			Background: "#0a1810", Surface: "#142822",
			Text: "#ecfdf5", TextSecondary: "#a7f3d0", Border: "#166534",
			Error: "#ef4444", Warning: "#f59e0b", Success: "#22c55e", Info: "#3b82f6",
		},
	},
	{
		Name: "Purple Haze",
		Colors: Colors{
			Primary: "#a855f7", Secondary: "#9333ea", Accent: "#c084fc",
			Background: "#1a0f25", Surface: "#2a1a3a",
			Text: "#faf5ff", TextSecondary: "#d8b4fe", Border: "#6b21a8",
			Error: "#ef4444", Warning: "#f59e0b", Success: "#10b981", Info: "#3b82f6",
		},
	},
	{
		Name: "Sunset Orange",
		Colors: Colors{
			Primary: "#f97316", Secondary: "#ea580c", Accent: "#fb923c",
			Background: "#1a0f0a", Surface: "#2a1810",
			Text: "#fff7ed", TextSecondary: "#fed7aa", Border: "#9a3412",
			Error: "#dc2626", Warning: "#fbbf24", Success: "#10b981", Info: "#3b82f6",
		},
	},
}

// PredefinedThemes returns the built-in palettes.
func PredefinedThemes() []CustomTheme {
	return append([]CustomTheme(nil), predefined...)
}

// PresetByName looks up a built-in palette.
func PresetByName(name string) (CustomTheme, bool) {
	for _, t := range predefined {
		if t.Name == name {
			return t, true
		}
	}
	return CustomTheme{}, false
}

package internal

import (
	"fmt"
	"log/slog"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/pinboard/internal/grid"
	"github.com/starford/pinboard/internal/models"
	"github.com/starford/pinboard/internal/playground"
	"github.com/starford/pinboard/internal/render"
	"github.com/starford/pinboard/internal/viewport"
)

// Auth modes.
const (
	AuthModeDisabled = "disabled"
	AuthModeToken    = "token"
)

// Config represents the application configuration.
type Config struct {
	App       ApplicationConfig `yaml:"app"`
	SQLite    SQLiteConfig      `yaml:"sqlite"`
	Auth      AuthConfig        `yaml:"auth"`
	Grid      GridConfig        `yaml:"grid"`
	Viewport  ViewportConfig    `yaml:"viewport"`
	Gesture   GestureConfig     `yaml:"gesture"`
	Snapshots SnapshotsConfig   `yaml:"snapshots"`
	TUI       TUIConfig         `yaml:"tui"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	for _, v := range []validation.Validatable{&c.App, &c.SQLite, &c.Auth, &c.Grid, &c.Viewport, &c.Gesture, &c.Snapshots, &c.TUI} {
		if err := v.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// Playground builds the playground configuration from the grid, viewport
// and gesture sections.
func (c *Config) Playground() playground.Config {
	pc := playground.DefaultConfig()
	pc.Grid = grid.Model{
		CellSize:       c.Grid.CellSize,
		DashboardWidth: c.Grid.DashboardWidth,
		DefaultHeight:  c.Grid.DefaultHeight,
	}
	pc.Viewport = viewport.Config{
		MinScale:          c.Viewport.MinScale,
		MaxScale:          c.Viewport.MaxScale,
		DefaultScale:      c.Viewport.DefaultScale,
		ZoomStep:          c.Viewport.ZoomStep,
		PanSettle:         c.Viewport.PanSettle,
		AnimationDuration: c.Viewport.Animation,
	}
	pc.MoveInterval = c.Gesture.MoveInterval
	pc.MessageTTL = c.Gesture.MessageTTL
	pc.HitTolerance = c.Gesture.HitTolerance
	return pc
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel slog.Level `yaml:"log_level"`
	HTTP     HTTPConfig `yaml:"http"`
}

// Validate validates the application configuration.
func (c *ApplicationConfig) Validate() error {
	return c.HTTP.Validate()
}

// HTTPConfig holds HTTP server configuration.
type HTTPConfig struct {
	Port int `yaml:"port"`
}

// Address returns HTTP server address.
func (c *HTTPConfig) Address() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Validate validates the HTTP configuration.
func (c *HTTPConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
	)
}

// SQLiteConfig holds SQLite database configuration.
type SQLiteConfig struct {
	Path string `yaml:"path"`
}

// Validate validates the SQLite configuration.
func (c *SQLiteConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
	)
}

// AuthConfig holds authentication configuration.
//
// Mode controls how authentication is enforced:
//   - "disabled" (default): no authentication required, suitable for local dev.
//   - "token": Bearer token authentication; Token must be non-empty.
type AuthConfig struct {
	Mode  string `yaml:"mode"`
	Token string `yaml:"token"`
}

// Validate validates the auth configuration.
func (c *AuthConfig) Validate() error {
	if c.Mode == "" {
		c.Mode = AuthModeDisabled
	}
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Mode, validation.Required, validation.In(AuthModeDisabled, AuthModeToken)),
	); err != nil {
		return err
	}
	if c.Mode == AuthModeToken && c.Token == "" {
		return fmt.Errorf("auth: mode is %q but token is empty", AuthModeToken)
	}
	return nil
}

// AuthEnabled returns true when authentication is active.
func (c *AuthConfig) AuthEnabled() bool {
	return c.Mode == AuthModeToken
}

// GridConfig holds the grid geometry in pixels.
type GridConfig struct {
	CellSize       int     `yaml:"cell_size"`
	DashboardWidth float64 `yaml:"dashboard_width"`
	DefaultHeight  float64 `yaml:"default_height"`
}

// Validate validates the grid configuration.
func (c *GridConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.CellSize, validation.Required, validation.Min(1), validation.Max(100)),
		validation.Field(&c.DashboardWidth, validation.Required, validation.Min(float64(c.CellSize))),
		validation.Field(&c.DefaultHeight, validation.Required, validation.Min(float64(c.CellSize))),
	)
}

// ViewportConfig holds zoom limits and pan timing.
type ViewportConfig struct {
	MinScale     float64       `yaml:"min_scale"`
	MaxScale     float64       `yaml:"max_scale"`
	DefaultScale float64       `yaml:"default_scale"`
	ZoomStep     float64       `yaml:"zoom_step"`
	PanSettle    time.Duration `yaml:"pan_settle"`
	Animation    time.Duration `yaml:"animation"`
}

// Validate validates the viewport configuration.
func (c *ViewportConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.MinScale, validation.Required, validation.Min(0.01)),
		validation.Field(&c.MaxScale, validation.Required, validation.Min(c.MinScale)),
		validation.Field(&c.DefaultScale, validation.Required, validation.Min(c.MinScale), validation.Max(c.MaxScale)),
		validation.Field(&c.ZoomStep, validation.Required, validation.Min(0.01)),
		validation.Field(&c.PanSettle, validation.Min(time.Duration(0))),
		validation.Field(&c.Animation, validation.Min(time.Duration(0))),
	)
}

// GestureConfig holds drag and connection gesture tunables.
type GestureConfig struct {
	MoveInterval time.Duration `yaml:"move_interval"`
	MessageTTL   time.Duration `yaml:"message_ttl"`
	HitTolerance float64       `yaml:"hit_tolerance"`
}

// Validate validates the gesture configuration.
func (c *GestureConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.MoveInterval, validation.Min(time.Duration(0)), validation.Max(time.Second)),
		validation.Field(&c.MessageTTL, validation.Required, validation.Min(100*time.Millisecond)),
		validation.Field(&c.HitTolerance, validation.Required, validation.Min(1.0), validation.Max(64.0)),
	)
}

// SnapshotsConfig holds snapshot import, export and remote store settings.
//
// ImportDir is watched for *.json snapshot files. ExportDir receives PNG
// renders. ServerURL is the API base the TUI saves to, for example
// "http://localhost:8080/api"; when empty the TUI writes to SQLite directly.
type SnapshotsConfig struct {
	ImportDir      string        `yaml:"import_dir"`
	ExportDir      string        `yaml:"export_dir"`
	ServerURL      string        `yaml:"server_url"`
	EventsThrottle time.Duration `yaml:"events_throttle"`
}

// Validate validates the snapshots configuration.
func (c *SnapshotsConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.ImportDir, validation.Required),
		validation.Field(&c.ExportDir, validation.Required),
		validation.Field(&c.EventsThrottle, validation.Min(time.Duration(0))),
	)
}

// TUIConfig holds the terminal host settings.
//
// CellWidth and CellHeight are the screen pixels one terminal cell stands
// for. Widgets is the catalogue the "w" key cycles through.
type TUIConfig struct {
	UserID     string         `yaml:"user_id"`
	ViewID     string         `yaml:"view_id"`
	CellWidth  float64        `yaml:"cell_width"`
	CellHeight float64        `yaml:"cell_height"`
	LogFile    string         `yaml:"log_file"`
	Widgets    []WidgetConfig `yaml:"widgets"`
}

// WidgetConfig is one dashboard widget the TUI can drop onto the canvas.
type WidgetConfig struct {
	ID   string `yaml:"id"`
	Name string `yaml:"name"`
	Type string `yaml:"type"`
	// Data is the sample dataset the widget body is rendered from.
	Data []map[string]any `yaml:"data"`
}

// Validate validates the widget entry.
func (c WidgetConfig) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.ID, validation.Required),
		validation.Field(&c.Name, validation.Required),
	)
}

// Validate validates the TUI configuration.
func (c *TUIConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.UserID, validation.Required),
		validation.Field(&c.ViewID, validation.Required),
		validation.Field(&c.CellWidth, validation.Required, validation.Min(1.0)),
		validation.Field(&c.CellHeight, validation.Required, validation.Min(1.0)),
		validation.Field(&c.LogFile, validation.Required),
		validation.Field(&c.Widgets),
	)
}

// ElementRefs returns the widget catalogue as element references.
func (c *TUIConfig) ElementRefs() []models.ElementRef {
	refs := make([]models.ElementRef, 0, len(c.Widgets))
	for _, w := range c.Widgets {
		refs = append(refs, models.ElementRef{ElementID: w.ID, ElementName: w.Name, ElementType: w.Type})
	}
	return refs
}

// Datasets returns the sample data of every widget that has some, keyed by
// widget id.
func (c *TUIConfig) Datasets() map[string]render.Dataset {
	out := make(map[string]render.Dataset)
	for _, w := range c.Widgets {
		if len(w.Data) > 0 {
			out[w.ID] = render.Dataset(w.Data)
		}
	}
	return out
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	g := grid.Default()
	v := viewport.DefaultConfig()
	p := playground.DefaultConfig()
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
			HTTP: HTTPConfig{
				Port: 8080,
			},
		},
		SQLite: SQLiteConfig{
			Path: "./pinboard.db",
		},
		Auth: AuthConfig{
			Mode: AuthModeDisabled,
		},
		Grid: GridConfig{
			CellSize:       g.CellSize,
			DashboardWidth: g.DashboardWidth,
			DefaultHeight:  g.DefaultHeight,
		},
		Viewport: ViewportConfig{
			MinScale:     v.MinScale,
			MaxScale:     v.MaxScale,
			DefaultScale: v.DefaultScale,
			ZoomStep:     v.ZoomStep,
			PanSettle:    v.PanSettle,
			Animation:    v.AnimationDuration,
		},
		Gesture: GestureConfig{
			MoveInterval: p.MoveInterval,
			MessageTTL:   p.MessageTTL,
			HitTolerance: p.HitTolerance,
		},
		Snapshots: SnapshotsConfig{
			ImportDir:      "./snapshots/import",
			ExportDir:      "./snapshots/export",
			EventsThrottle: 2 * time.Second,
		},
		TUI: TUIConfig{
			UserID:     "local",
			ViewID:     "default",
			CellWidth:  8,
			CellHeight: 16,
			LogFile:    "./pinboard-tui.log",
			Widgets: []WidgetConfig{
				{ID: "widget-revenue", Name: "Revenue", Type: "chart", Data: []map[string]any{
					{"month": "2025-04", "value": 182000},
					{"month": "2025-05", "value": 197500},
					{"month": "2025-06", "value": 210300},
				}},
				{ID: "widget-signups", Name: "Signups", Type: "chart"},
				{ID: "widget-accounts", Name: "Top accounts", Type: "table"},
			},
		},
	}
}

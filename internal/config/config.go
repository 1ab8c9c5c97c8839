// Package config loads device settings from an optional CUE file.
//
// The file is unified with the embedded #Config schema, which supplies
// the defaults and rejects unknown fields. Menu lists left out of the file
// default to model.DefaultDishes and model.DefaultDrinks:
//
//	poll_interval: "1s"
//	push: rule: #"status == "ready""#
//	menu: drinks: ["Acqua", "Spritz"]
package config

import (
	_ "embed"
	"fmt"
	"log/slog"
	"os"
	"slices"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"

	"github.com/roach88/comande/internal/lifecycle"
	"github.com/roach88/comande/internal/model"
)

//go:embed schema.cue
var schemaCUE []byte

// Config is the resolved device configuration.
type Config struct {
	PollInterval time.Duration
	Delays       lifecycle.Delays

	NotificationCapacity int
	NotificationExpiry   time.Duration

	PushEnabled bool
	PushRule    string
	PushTitle   string

	Dishes []string
	Drinks []string

	LogLevel slog.Level
}

// raw mirrors #Config for decoding.
type raw struct {
	PollInterval   string `json:"poll_interval"`
	PreparingAfter string `json:"preparing_after"`
	ReadyAfter     string `json:"ready_after"`
	Notifications  struct {
		Capacity int    `json:"capacity"`
		Expiry   string `json:"expiry"`
	} `json:"notifications"`
	Push struct {
		Enabled bool   `json:"enabled"`
		Rule    string `json:"rule"`
		Title   string `json:"title"`
	} `json:"push"`
	Menu struct {
		Dishes *[]string `json:"dishes"`
		Drinks *[]string `json:"drinks"`
	} `json:"menu"`
	LogLevel string `json:"log_level"`
}

// Default returns the configuration with every default applied.
func Default() *Config {
	cfg, err := LoadBytes(nil, "")
	if err != nil {
		panic(fmt.Sprintf("embedded config schema: %v", err))
	}
	return cfg
}

// Load reads path and resolves it against the schema. An empty path
// yields the defaults.
func Load(path string) (*Config, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return LoadBytes(data, path)
}

// LoadBytes resolves CUE source data against the schema. filename is used
// in error positions.
func LoadBytes(data []byte, filename string) (*Config, error) {
	ctx := cuecontext.New()

	schema := ctx.CompileBytes(schemaCUE, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	v := schema.LookupPath(cue.ParsePath("#Config"))

	if len(data) > 0 {
		user := ctx.CompileBytes(data, cue.Filename(filename))
		if err := user.Err(); err != nil {
			return nil, fmt.Errorf("parse config: %s", formatCUEError(err))
		}
		v = v.Unify(user)
	}

	if err := v.Validate(cue.Concrete(true)); err != nil {
		return nil, fmt.Errorf("invalid config: %s", formatCUEError(err))
	}

	var r raw
	if err := v.Decode(&r); err != nil {
		return nil, fmt.Errorf("decode config: %s", formatCUEError(err))
	}
	return r.resolve()
}

func (r raw) resolve() (*Config, error) {
	cfg := &Config{
		NotificationCapacity: r.Notifications.Capacity,
		PushEnabled:          r.Push.Enabled,
		PushRule:             r.Push.Rule,
		PushTitle:            r.Push.Title,
	}

	var err error
	if cfg.Dishes, err = menuList("menu.dishes", r.Menu.Dishes, model.DefaultDishes); err != nil {
		return nil, err
	}
	if cfg.Drinks, err = menuList("menu.drinks", r.Menu.Drinks, model.DefaultDrinks); err != nil {
		return nil, err
	}

	durations := []struct {
		field string
		src   string
		dst   *time.Duration
	}{
		{"poll_interval", r.PollInterval, &cfg.PollInterval},
		{"preparing_after", r.PreparingAfter, &cfg.Delays.Preparing},
		{"ready_after", r.ReadyAfter, &cfg.Delays.Ready},
		{"notifications.expiry", r.Notifications.Expiry, &cfg.NotificationExpiry},
	}
	for _, d := range durations {
		parsed, err := time.ParseDuration(d.src)
		if err != nil {
			return nil, fmt.Errorf("invalid config: %s: %w", d.field, err)
		}
		if parsed <= 0 {
			return nil, fmt.Errorf("invalid config: %s must be positive, got %s", d.field, d.src)
		}
		*d.dst = parsed
	}

	if err := cfg.Delays.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	if err := cfg.LogLevel.UnmarshalText([]byte(r.LogLevel)); err != nil {
		return nil, fmt.Errorf("invalid config: log_level: %w", err)
	}

	return cfg, nil
}

// menuList normalises a configured menu list, or copies defaults when the
// list was left out. Items that are equal after normalisation are rejected.
func menuList(field string, src *[]string, defaults []string) ([]string, error) {
	if src == nil {
		return slices.Clone(defaults), nil
	}
	items := model.NormalizeAll(*src)
	for i, it := range items {
		if slices.Contains(items[:i], it) {
			return nil, fmt.Errorf("invalid config: %s: duplicate item %q", field, it)
		}
	}
	return items, nil
}

// formatCUEError flattens a CUE error list into one line per error,
// with positions.
func formatCUEError(err error) string {
	return errors.Details(err, nil)
}

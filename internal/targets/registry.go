// Package targets loads the set of endpoints measured every probe cycle.
package targets

import (
	"fmt"
	"log/slog"
	"strings"

	"pinger/internal/config"
	"pinger/internal/models"
)

// Probe types
const (
	TypeICMP = "icmp"
)

// Probe kinds reserved for future probe families
var unsupportedTypes = map[string]bool{
	"tcp":  true,
	"http": true,
	"dns":  true,
}

// Entry is one raw target from the targets document
type Entry struct {
	Address string `json:"ip" toml:"ip" yaml:"ip"`
	Name    string `json:"name" toml:"name" yaml:"name"`
	Type    string `json:"type,omitempty" toml:"type" yaml:"type,omitempty"`
	Country string `json:"country,omitempty" toml:"country" yaml:"country,omitempty"`
	State   string `json:"state,omitempty" toml:"state" yaml:"state,omitempty"`
	City    string `json:"city,omitempty" toml:"city" yaml:"city,omitempty"`
	Network string `json:"network,omitempty" toml:"network" yaml:"network,omitempty"`
}

// Locator resolves location attributes for an address
type Locator interface {
	Locate(address string) (models.Location, bool)
}

// Registry is the immutable address to target mapping
type Registry struct {
	targets map[string]models.Target
	order   []string
}

// Option configures Load
type Option func(*loadOptions)

type loadOptions struct {
	logger  *slog.Logger
	locator Locator
}

// WithLogger sets the logger used to report skipped entries
func WithLogger(logger *slog.Logger) Option {
	return func(o *loadOptions) { o.logger = logger }
}

// WithLocator fills missing location attributes from l
func WithLocator(l Locator) Option {
	return func(o *loadOptions) { o.locator = l }
}

// Load validates entries and builds the registry. Invalid entries are
// skipped; it fails only when no valid target remains.
func Load(entries []Entry, opts ...Option) (*Registry, error) {
	o := loadOptions{logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}

	r := &Registry{targets: make(map[string]models.Target, len(entries))}
	for i, e := range entries {
		address := strings.TrimSpace(e.Address)
		name := strings.TrimSpace(e.Name)
		if address == "" || name == "" {
			o.logger.Error("Failed to parse target, ip and name are required",
				"index", i, "ip", e.Address, "name", e.Name)
			continue
		}

		typ := strings.ToLower(strings.TrimSpace(e.Type))
		if typ == "" {
			typ = TypeICMP
		}
		if typ != TypeICMP {
			if unsupportedTypes[typ] {
				o.logger.Warn("Skipping target with unsupported probe type", "name", name, "ip", address, "type", typ)
			} else {
				o.logger.Warn("Skipping target with unknown probe type", "name", name, "ip", address, "type", typ)
			}
			continue
		}

		if _, dup := r.targets[address]; dup {
			o.logger.Warn("Skipping duplicate target", "name", name, "ip", address)
			continue
		}

		t := models.Target{
			Address: address,
			Name:    name,
			Location: models.Location{
				Country: e.Country,
				State:   e.State,
				City:    e.City,
				Network: e.Network,
			},
		}
		if o.locator != nil {
			if loc, ok := o.locator.Locate(address); ok {
				t.Location = t.Location.Merge(loc)
			}
		}

		r.targets[address] = t
		r.order = append(r.order, address)
		o.logger.Debug("Parsed target", "name", name, "ip", address)
	}

	if len(r.order) == 0 {
		return nil, &config.ConfigError{Field: "targets", Message: "no valid targets found"}
	}
	return r, nil
}

// Lookup returns the target registered for address
func (r *Registry) Lookup(address string) (models.Target, bool) {
	t, ok := r.targets[address]
	return t, ok
}

// Addresses returns the target addresses in configuration order
func (r *Registry) Addresses() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// Len returns the number of registered targets
func (r *Registry) Len() int {
	return len(r.order)
}

func (r *Registry) String() string {
	return fmt.Sprintf("%d target(s)", len(r.order))
}

// Package config persists the small amount of state a noet session needs
// across CLI invocations: the set of known network roots and which one is
// currently in focus (spec.md §6's CLI surface, grounded on the original
// LatticeConfigProvider's get/set-networks, get/set-focus shape).
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// ErrNotFound indicates a config file or one of its sections doesn't exist.
var ErrNotFound = errors.New("config: not found")

// NetworkRecord names one network root this session knows about: the
// repo-relative path its config file lives under, and the id/title/summary
// a "noet init" call gave it.
type NetworkRecord struct {
	Path    string `mapstructure:"path"`
	ID      string `mapstructure:"id"`
	Title   string `mapstructure:"title"`
	Summary string `mapstructure:"summary"`
}

// Provider is the persistence boundary spec.md §6 names: a place to record
// which networks exist and which one a CLI session is currently focused on.
type Provider interface {
	GetNetworks() ([]NetworkRecord, error)
	SetNetworks(nets []NetworkRecord) error
	GetFocus() (string, error)
	SetFocus(path string) error
}

// TomlProvider is the default Provider, backed by a viper instance reading
// and writing a single TOML sidecar file plus NOET_-prefixed environment
// overrides (spec.md §6: "NOET_BASE_URL overrides --base-url").
type TomlProvider struct {
	path string
	v    *viper.Viper
}

// NewTomlProvider returns a Provider backed by the TOML file at path. The
// file need not exist yet; GetNetworks/GetFocus report ErrNotFound-wrapped
// zero values until SetNetworks/SetFocus first write it.
func NewTomlProvider(path string) *TomlProvider {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("toml")
	v.SetEnvPrefix("NOET")
	v.AutomaticEnv()
	_ = v.ReadInConfig()
	return &TomlProvider{path: path, v: v}
}

// GetNetworks returns every network record currently persisted, or an empty
// slice if the config file has never been written.
func (p *TomlProvider) GetNetworks() ([]NetworkRecord, error) {
	var nets []NetworkRecord
	if err := p.v.UnmarshalKey("networks", &nets); err != nil {
		return nil, fmt.Errorf("config: decode networks: %w", err)
	}
	return nets, nil
}

// SetNetworks overwrites the persisted network list and rewrites the file.
func (p *TomlProvider) SetNetworks(nets []NetworkRecord) error {
	p.v.Set("networks", nets)
	return p.write()
}

// GetFocus returns the path of the network currently in focus, or
// ErrNotFound if no focus has been set.
func (p *TomlProvider) GetFocus() (string, error) {
	focus := p.v.GetString("focus")
	if focus == "" {
		return "", ErrNotFound
	}
	return focus, nil
}

// SetFocus records path as the network in focus and rewrites the file.
func (p *TomlProvider) SetFocus(path string) error {
	p.v.Set("focus", path)
	return p.write()
}

func (p *TomlProvider) write() error {
	if err := os.MkdirAll(filepath.Dir(p.path), 0o755); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if err := p.v.WriteConfigAs(p.path); err != nil {
		return fmt.Errorf("config: write %s: %w", p.path, err)
	}
	return nil
}

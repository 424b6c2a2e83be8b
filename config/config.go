/*
Copyright (c) Facebook, Inc. and its affiliates.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

/*
Package config persists user defaults and named presets in a TOML file.
*/
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/aguacero7/rkik/format"
)

// EnvDir overrides the directory config.toml lives in
const EnvDir = "RKIK_CONFIG_DIR"

// FileName of the config file
const FileName = "config.toml"

// Unset is displayed for keys without value
const Unset = "<unset>"

// Keys which can be set
var Keys = []string{"timeout", "format", "ipv6_only"}

// Defaults are applied to flags which were not given explicitly
type Defaults struct {
	Timeout  *float64 `toml:"timeout,omitempty"`
	Format   *string  `toml:"format,omitempty"`
	IPv6Only *bool    `toml:"ipv6_only,omitempty"`
}

// Preset is a named command line
type Preset struct {
	Args []string `toml:"args"`
}

// Data is the content of the config file
type Data struct {
	Defaults Defaults          `toml:"defaults,omitempty"`
	Presets  map[string]Preset `toml:"presets,omitempty"`
}

// Store is config file loaded in memory
type Store struct {
	Path string
	Data Data
}

// DefaultPath returns $RKIK_CONFIG_DIR/config.toml or the per user config dir
func DefaultPath() (string, error) {
	if dir := os.Getenv(EnvDir); dir != "" {
		abs, err := filepath.Abs(dir)
		if err != nil {
			return "", err
		}
		return filepath.Join(abs, FileName), nil
	}
	dir, err := os.UserConfigDir()
	if err != nil {
		return filepath.Join(".rkik", FileName), nil
	}
	return filepath.Join(dir, "rkik", FileName), nil
}

// Load reads config from path. Missing file is an empty config.
func Load(path string) (*Store, error) {
	s := &Store{Path: path}
	if _, err := toml.DecodeFile(path, &s.Data); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return s, nil
		}
		return nil, fmt.Errorf("decode config %s: %w", path, err)
	}
	// presets without arguments are useless, drop them
	for name, p := range s.Data.Presets {
		if len(p.Args) == 0 {
			delete(s.Data.Presets, name)
		}
	}
	return s, nil
}

// LoadDefault loads config from DefaultPath
func LoadDefault() (*Store, error) {
	path, err := DefaultPath()
	if err != nil {
		return nil, err
	}
	return Load(path)
}

// Save writes config to disk, creating the directory if needed
func (s *Store) Save() error {
	if err := os.MkdirAll(filepath.Dir(s.Path), 0o755); err != nil {
		return err
	}
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(s.Data); err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	tmp := s.Path + ".tmp"
	if err := os.WriteFile(tmp, buf.Bytes(), 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, s.Path)
}

// Get returns printable value of key
func (s *Store) Get(key string) (string, error) {
	d := s.Data.Defaults
	switch key {
	case "timeout":
		if d.Timeout == nil {
			return Unset, nil
		}
		return strconv.FormatFloat(*d.Timeout, 'f', 3, 64), nil
	case "format":
		if d.Format == nil {
			return Unset, nil
		}
		return *d.Format, nil
	case "ipv6_only":
		if d.IPv6Only == nil {
			return Unset, nil
		}
		return strconv.FormatBool(*d.IPv6Only), nil
	}
	return "", unknownKey(key)
}

// Set parses and stores value of key
func (s *Store) Set(key, value string) error {
	switch key {
	case "timeout":
		v, err := strconv.ParseFloat(value, 64)
		if err != nil || v <= 0 {
			return fmt.Errorf("invalid timeout: %s", value)
		}
		s.Data.Defaults.Timeout = &v
	case "format":
		f, err := format.ParseFormat(value)
		if err != nil {
			return err
		}
		v := string(f)
		s.Data.Defaults.Format = &v
	case "ipv6_only":
		v, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid bool: %s", value)
		}
		s.Data.Defaults.IPv6Only = &v
	default:
		return unknownKey(key)
	}
	return nil
}

// Clear unsets key
func (s *Store) Clear(key string) error {
	switch key {
	case "timeout":
		s.Data.Defaults.Timeout = nil
	case "format":
		s.Data.Defaults.Format = nil
	case "ipv6_only":
		s.Data.Defaults.IPv6Only = nil
	default:
		return unknownKey(key)
	}
	return nil
}

// List returns "key = value" lines of all keys
func (s *Store) List() []string {
	out := make([]string, 0, len(Keys))
	for _, k := range Keys {
		v, _ := s.Get(k)
		out = append(out, fmt.Sprintf("%s = %s", k, v))
	}
	return out
}

// TimeoutDuration returns the configured timeout
func (d Defaults) TimeoutDuration() (time.Duration, bool) {
	if d.Timeout == nil {
		return 0, false
	}
	return time.Duration(*d.Timeout * float64(time.Second)), true
}

// AddPreset stores args under name, replacing existing preset
func (s *Store) AddPreset(name string, args []string) error {
	if name == "" {
		return errors.New("preset name is empty")
	}
	if len(args) == 0 {
		return fmt.Errorf("preset %q has no arguments", name)
	}
	if s.Data.Presets == nil {
		s.Data.Presets = map[string]Preset{}
	}
	s.Data.Presets[name] = Preset{Args: args}
	return nil
}

// RemovePreset deletes preset, returns false if it didn't exist
func (s *Store) RemovePreset(name string) bool {
	if _, ok := s.Data.Presets[name]; !ok {
		return false
	}
	delete(s.Data.Presets, name)
	return true
}

// Preset looks up preset by name
func (s *Store) Preset(name string) (Preset, bool) {
	p, ok := s.Data.Presets[name]
	return p, ok
}

// PresetNames returns sorted preset names
func (s *Store) PresetNames() []string {
	names := make([]string, 0, len(s.Data.Presets))
	for name := range s.Data.Presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func unknownKey(key string) error {
	return fmt.Errorf("unknown key %q, valid keys: timeout, format, ipv6_only", key)
}

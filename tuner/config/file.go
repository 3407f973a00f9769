package config

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Load decodes a JSON configuration. Missing fields keep their defaults.
func Load(r io.Reader) (Config, error) {
	cfg := Default()

	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()

	if err := dec.Decode(&cfg); err != nil {
		return Config{}, fmt.Errorf("config: decode json: %w", err)
	}

	return cfg, nil
}

// Save encodes cfg as indented JSON.
func Save(w io.Writer, cfg Config) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")

	if err := enc.Encode(cfg); err != nil {
		return fmt.Errorf("config: encode json: %w", err)
	}

	return nil
}

// Decode reads the line-oriented "KEY = VALUE" format into a copy of base.
// Lines starting with '#' and blank lines are skipped. Unknown keys,
// unparsable values and deprecated keys are reported as warnings; only
// read errors fail.
func Decode(r io.Reader, base Config) (Config, []string, error) {
	cfg := base

	var warnings []string

	sc := bufio.NewScanner(r)
	line := 0

	for sc.Scan() {
		line++

		text := strings.TrimSpace(sc.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}

		key, value, err := ParseAssignment(text)
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("line %d: %v", line, err))
			continue
		}

		f, ok := Lookup(key)
		if !ok {
			warnings = append(warnings, fmt.Sprintf("line %d: unknown keyword %s", line, key))
			continue
		}

		if f.Deprecated() {
			warnings = append(warnings, fmt.Sprintf("line %d: deprecated option %s, use %s", line, f.Key, f.AliasOf))
		}

		if err := f.Set(&cfg, value); err != nil {
			warnings = append(warnings, fmt.Sprintf("line %d: %v", line, err))
		}
	}

	if err := sc.Err(); err != nil {
		return base, warnings, fmt.Errorf("config: read: %w", err)
	}

	return cfg, warnings, nil
}

// Encode writes cfg in the "KEY = VALUE" format.
func Encode(w io.Writer, cfg Config) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintln(bw, "# tuner configuration")
	fmt.Fprintln(bw)

	for _, f := range fields {
		fmt.Fprintf(bw, "%s = %s\n", f.Key, f.Get(cfg))
	}

	if err := bw.Flush(); err != nil {
		return fmt.Errorf("config: write: %w", err)
	}

	return nil
}

// LoadFile reads a configuration file. Files ending in .json use JSON,
// anything else the "KEY = VALUE" format.
func LoadFile(path string) (Config, []string, error) {
	f, err := os.Open(path)
	if err != nil {
		return Config{}, nil, fmt.Errorf("config: %w", err)
	}
	defer f.Close()

	if isJSON(path) {
		cfg, err := Load(f)
		return cfg, nil, err
	}

	return Decode(f, Default())
}

// SaveFile writes cfg to path in the format implied by its extension.
func SaveFile(path string, cfg Config) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	if isJSON(path) {
		err = Save(f, cfg)
	} else {
		err = Encode(f, cfg)
	}

	if cerr := f.Close(); err == nil && cerr != nil {
		err = fmt.Errorf("config: %w", cerr)
	}

	return err
}

func isJSON(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".json")
}

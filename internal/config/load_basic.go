// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/hashicorp/hcl/v2/hclsimple"

	"grimm.is/hostblock/internal/errors"
)

// LoadFile loads, defaults and validates a config file. Files ending in
// .json are read as HCL's JSON syntax; anything else as native HCL.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, errors.KindValidation, "failed to read config file")
	}

	name := path
	if ext := strings.ToLower(filepath.Ext(path)); ext != ".json" && ext != ".hcl" {
		name = path + ".hcl"
	}
	return LoadBytes(name, data)
}

// LoadBytes decodes data as if read from filename. The extension of
// filename selects the syntax.
func LoadBytes(filename string, data []byte) (*Config, error) {
	var cfg Config
	if err := hclsimple.Decode(filename, data, nil, &cfg); err != nil {
		return nil, errors.Attr(errors.Wrap(err, errors.KindValidation, "failed to parse config"), "file", filename)
	}

	cfg.ApplyDefaults()
	if err := cfg.Validate().Err(); err != nil {
		return nil, errors.Attr(err, "file", filename)
	}
	return &cfg, nil
}

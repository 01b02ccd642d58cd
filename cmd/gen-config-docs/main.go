// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// gen-config-docs generates the configuration reference from the HCL
// struct definitions.
//
// Usage:
//
//	go run ./cmd/gen-config-docs -format=markdown -output=docs/config-reference.md
//	go run ./cmd/gen-config-docs -format=yaml -output=docs/config-reference.yaml
//	go run ./cmd/gen-config-docs -format=json
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"grimm.is/hostblock/internal/configdoc"
)

func main() {
	format := flag.String("format", "markdown", "Output format: markdown, yaml, json")
	output := flag.String("output", "", "Output file (default: stdout)")
	configDir := flag.String("config-dir", "internal/config", "Directory containing config Go files")
	flag.Parse()

	parser := configdoc.NewParser()
	if err := parser.ParseDir(*configDir); err != nil {
		fmt.Fprintf(os.Stderr, "Error parsing config directory: %v\n", err)
		os.Exit(1)
	}
	schema, err := parser.BuildSchema("Config", "hostblock configuration")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error building schema: %v\n", err)
		os.Exit(1)
	}

	switch *format {
	case "markdown":
		writeOutput(*output, configdoc.GenerateMarkdown(schema))

	case "yaml":
		content, err := configdoc.GenerateYAML(schema)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error generating YAML reference: %v\n", err)
			os.Exit(1)
		}
		writeOutput(*output, content)

	case "json":
		data, err := json.MarshalIndent(schema, "", "  ")
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error encoding schema: %v\n", err)
			os.Exit(1)
		}
		writeOutput(*output, string(data)+"\n")

	default:
		fmt.Fprintf(os.Stderr, "Unknown format: %s\n", *format)
		os.Exit(1)
	}
}

func writeOutput(path, content string) {
	if path == "" {
		fmt.Print(content)
		return
	}

	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			fmt.Fprintf(os.Stderr, "Error creating directory: %v\n", err)
			os.Exit(1)
		}
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		fmt.Fprintf(os.Stderr, "Error writing file: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Generated %s\n", path)
}

// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package configdoc

import (
	"fmt"
	"strings"
)

// GenerateMarkdown renders the reference document.
func GenerateMarkdown(schema *Schema) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "# %s\n\n", schema.Title)
	if schema.Description != "" {
		fmt.Fprintf(&sb, "%s\n\n", schema.Description)
	}
	if schema.Version != "" {
		fmt.Fprintf(&sb, "**Schema Version:** %s\n\n", schema.Version)
	}

	sb.WriteString("## Contents\n\n")
	for _, b := range schema.Blocks {
		fmt.Fprintf(&sb, "- [%s](#%s)\n", b.HCLName, anchor(b.HCLName))
	}
	sb.WriteString("\n")

	if len(schema.Attributes) > 0 {
		sb.WriteString("## Top-level attributes\n\n")
		writeFields(&sb, schema.Attributes)
	}
	for _, b := range schema.Blocks {
		writeBlock(&sb, b, 2)
	}
	return sb.String()
}

func writeBlock(sb *strings.Builder, b *Block, level int) {
	fmt.Fprintf(sb, "%s %s\n\n", strings.Repeat("#", level), b.HCLName)
	if b.Description != "" {
		fmt.Fprintf(sb, "%s\n\n", b.Description)
	}

	sb.WriteString("```hcl\n")
	fmt.Fprintf(sb, "%s {\n", b.HCLName)
	for _, f := range b.Fields {
		fmt.Fprintf(sb, "  %s = %s\n", f.HCLName, exampleValue(f))
	}
	sb.WriteString("}\n```\n\n")

	if len(b.Fields) > 0 {
		writeFields(sb, b.Fields)
	}
	for _, nested := range b.Blocks {
		writeBlock(sb, nested, level+1)
	}
}

func writeFields(sb *strings.Builder, fields []*Field) {
	sb.WriteString("| Attribute | Type | Default | Description |\n")
	sb.WriteString("|-----------|------|---------|-------------|\n")
	for _, f := range fields {
		def := "-"
		if f.Default != "" {
			def = "`" + f.Default + "`"
		}
		desc := f.Description
		if len(f.Enum) > 0 {
			desc = strings.TrimSpace(desc + " One of: `" + strings.Join(f.Enum, "`, `") + "`.")
		}
		fmt.Fprintf(sb, "| `%s` | %s | %s | %s |\n", f.HCLName, f.HCLType, def, escapeCell(desc))
	}
	sb.WriteString("\n")
}

// exampleValue picks @example, then @default, then a placeholder.
func exampleValue(f *Field) string {
	switch {
	case f.Example != "":
		return f.Example
	case f.Default != "":
		return f.Default
	case len(f.Enum) > 0:
		return `"` + f.Enum[0] + `"`
	}
	switch {
	case f.HCLType == "string":
		return `""`
	case f.HCLType == "bool":
		return "false"
	case f.HCLType == "number":
		return "0"
	case strings.HasPrefix(f.HCLType, "list"):
		return "[]"
	default:
		return "{}"
	}
}

func anchor(s string) string {
	return strings.ToLower(strings.ReplaceAll(s, "_", "-"))
}

func escapeCell(s string) string {
	return strings.ReplaceAll(s, "|", `\|`)
}

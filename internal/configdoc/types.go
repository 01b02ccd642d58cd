// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package configdoc

// Schema is the documentation model for a configuration root.
type Schema struct {
	Title       string   `json:"title" yaml:"title"`
	Description string   `json:"description" yaml:"description"`
	Version     string   `json:"version" yaml:"version"`
	Attributes  []*Field `json:"attributes,omitempty" yaml:"attributes,omitempty"`
	// Blocks keep source order.
	Blocks []*Block `json:"blocks" yaml:"blocks"`
}

// Block is an HCL block such as queue or filter.
type Block struct {
	Name        string   `json:"name" yaml:"name"`
	HCLName     string   `json:"hcl_name" yaml:"hcl_name"`
	Description string   `json:"description" yaml:"description"`
	GoType      string   `json:"go_type,omitempty" yaml:"go_type,omitempty"`
	Fields      []*Field `json:"fields,omitempty" yaml:"fields,omitempty"`
	Blocks      []*Block `json:"blocks,omitempty" yaml:"blocks,omitempty"`
}

// Field is an HCL attribute.
type Field struct {
	Name        string   `json:"name" yaml:"name"`
	HCLName     string   `json:"hcl_name" yaml:"hcl_name"`
	Type        string   `json:"type" yaml:"type"`
	HCLType     string   `json:"hcl_type" yaml:"hcl_type"`
	Description string   `json:"description" yaml:"description"`
	Optional    bool     `json:"optional" yaml:"optional"`
	Default     string   `json:"default,omitempty" yaml:"default,omitempty"`
	Enum        []string `json:"enum,omitempty" yaml:"enum,omitempty"`
	Example     string   `json:"example,omitempty" yaml:"example,omitempty"`
}

// Annotation holds the @ lines of a field comment.
type Annotation struct {
	Default string
	Enum    []string
	Example string
}

type parsedStruct struct {
	name   string
	doc    string
	fields []parsedField
}

type parsedField struct {
	name   string
	goType string
	tag    hclTag
	doc    string
	ann    Annotation
}

type hclTag struct {
	name     string
	optional bool
	block    bool
	label    bool
}

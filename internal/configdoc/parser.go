// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package configdoc

import (
	"go/ast"
	"go/parser"
	"go/token"
	"io/fs"
	"reflect"
	"strings"

	"grimm.is/hostblock/internal/errors"
)

// Parser extracts struct definitions carrying hcl tags from Go source.
type Parser struct {
	fset    *token.FileSet
	structs map[string]*parsedStruct
}

// NewParser creates an empty parser.
func NewParser() *Parser {
	return &Parser{
		fset:    token.NewFileSet(),
		structs: make(map[string]*parsedStruct),
	}
}

// ParseDir parses the non-test Go files in dir.
func (p *Parser) ParseDir(dir string) error {
	notTest := func(fi fs.FileInfo) bool { return !strings.HasSuffix(fi.Name(), "_test.go") }
	pkgs, err := parser.ParseDir(p.fset, dir, notTest, parser.ParseComments)
	if err != nil {
		return errors.Attr(errors.Wrap(err, errors.KindValidation, "failed to parse config sources"), "dir", dir)
	}
	for _, pkg := range pkgs {
		for _, file := range pkg.Files {
			p.extract(file)
		}
	}
	if len(p.structs) == 0 {
		return errors.Attr(errors.New(errors.KindNotFound, "no hcl structs found"), "dir", dir)
	}
	return nil
}

func (p *Parser) extract(file *ast.File) {
	for _, decl := range file.Decls {
		gen, ok := decl.(*ast.GenDecl)
		if !ok || gen.Tok != token.TYPE {
			continue
		}
		for _, spec := range gen.Specs {
			ts, ok := spec.(*ast.TypeSpec)
			if !ok {
				continue
			}
			st, ok := ts.Type.(*ast.StructType)
			if !ok || st.Fields == nil {
				continue
			}

			doc := ts.Doc
			if doc == nil {
				doc = gen.Doc
			}
			ps := &parsedStruct{name: ts.Name.Name, doc: strings.TrimSpace(doc.Text())}
			for _, f := range st.Fields.List {
				if len(f.Names) == 0 || f.Tag == nil {
					continue
				}
				pf := parseField(f)
				if pf.tag.name != "" {
					ps.fields = append(ps.fields, pf)
				}
			}
			if len(ps.fields) > 0 {
				p.structs[ps.name] = ps
			}
		}
	}
}

func parseField(f *ast.Field) parsedField {
	tag := reflect.StructTag(strings.Trim(f.Tag.Value, "`"))
	doc := strings.TrimSpace(f.Doc.Text())
	if c := strings.TrimSpace(f.Comment.Text()); c != "" {
		doc = strings.TrimSpace(doc + "\n" + c)
	}
	return parsedField{
		name:   f.Names[0].Name,
		goType: typeString(f.Type),
		tag:    parseHCLTag(tag.Get("hcl")),
		doc:    doc,
		ann:    parseAnnotations(doc),
	}
}

func parseHCLTag(tag string) hclTag {
	if tag == "" {
		return hclTag{}
	}
	parts := strings.Split(tag, ",")
	ht := hclTag{name: parts[0]}
	for _, part := range parts[1:] {
		switch part {
		case "optional":
			ht.optional = true
		case "block":
			ht.block = true
		case "label":
			ht.label = true
		}
	}
	return ht
}

// parseAnnotations reads @default, @enum and @example lines.
func parseAnnotations(doc string) Annotation {
	var ann Annotation
	for _, line := range strings.Split(doc, "\n") {
		line = strings.TrimSpace(line)
		key, val, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		val = strings.TrimSpace(val)
		switch key {
		case "@default":
			ann.Default = val
		case "@enum":
			for _, e := range strings.Split(val, ",") {
				if e = strings.TrimSpace(e); e != "" {
					ann.Enum = append(ann.Enum, e)
				}
			}
		case "@example":
			ann.Example = val
		}
	}
	return ann
}

func typeString(expr ast.Expr) string {
	switch t := expr.(type) {
	case *ast.Ident:
		return t.Name
	case *ast.StarExpr:
		return "*" + typeString(t.X)
	case *ast.ArrayType:
		return "[]" + typeString(t.Elt)
	case *ast.MapType:
		return "map[" + typeString(t.Key) + "]" + typeString(t.Value)
	case *ast.SelectorExpr:
		return typeString(t.X) + "." + t.Sel.Name
	default:
		return "unknown"
	}
}

// BuildSchema walks the struct named rootType and the blocks it references.
func (p *Parser) BuildSchema(rootType, title string) (*Schema, error) {
	root := p.structs[rootType]
	if root == nil {
		return nil, errors.Attr(errors.New(errors.KindNotFound, "root type not found"), "type", rootType)
	}

	schema := &Schema{
		Title:       title,
		Description: root.doc,
	}
	for _, f := range root.fields {
		switch {
		case f.tag.block:
			schema.Blocks = append(schema.Blocks, p.buildBlock(f, 0))
		case f.name == "SchemaVersion":
			schema.Version = strings.Trim(f.ann.Default, `"`)
			schema.Attributes = append(schema.Attributes, buildField(f))
		default:
			schema.Attributes = append(schema.Attributes, buildField(f))
		}
	}
	return schema, nil
}

// maxDepth bounds recursion through self-referencing block types.
const maxDepth = 8

func (p *Parser) buildBlock(f parsedField, depth int) *Block {
	b := &Block{
		Name:        f.name,
		HCLName:     f.tag.name,
		Description: cleanDescription(f.doc),
		GoType:      f.goType,
	}
	ref := p.structs[strings.TrimPrefix(strings.TrimPrefix(f.goType, "*"), "[]")]
	if ref == nil {
		return b
	}
	if b.Description == "" {
		b.Description = ref.doc
	}
	for _, sf := range ref.fields {
		switch {
		case sf.tag.label:
		case sf.tag.block && depth < maxDepth:
			b.Blocks = append(b.Blocks, p.buildBlock(sf, depth+1))
		case !sf.tag.block:
			b.Fields = append(b.Fields, buildField(sf))
		}
	}
	return b
}

func buildField(pf parsedField) *Field {
	return &Field{
		Name:        pf.name,
		HCLName:     pf.tag.name,
		Type:        pf.goType,
		HCLType:     hclType(pf.goType),
		Description: cleanDescription(pf.doc),
		Optional:    pf.tag.optional,
		Default:     pf.ann.Default,
		Enum:        pf.ann.Enum,
		Example:     pf.ann.Example,
	}
}

func hclType(goType string) string {
	goType = strings.TrimPrefix(goType, "*")
	if strings.HasPrefix(goType, "[]") {
		return "list(" + hclType(strings.TrimPrefix(goType, "[]")) + ")"
	}
	if strings.HasPrefix(goType, "map[") {
		return "map"
	}
	switch goType {
	case "string":
		return "string"
	case "bool":
		return "bool"
	case "int", "int8", "int16", "int32", "int64",
		"uint", "uint8", "uint16", "uint32", "uint64",
		"float32", "float64":
		return "number"
	default:
		return "object"
	}
}

// cleanDescription drops annotation lines and joins the rest.
func cleanDescription(doc string) string {
	var keep []string
	for _, line := range strings.Split(doc, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "@") {
			continue
		}
		keep = append(keep, line)
	}
	return strings.Join(keep, " ")
}

package structured

import (
	"fmt"
	"reflect"
	"strings"
)

// GeneratePrompt builds the output instructions for decoding a reply into T.
// Struct fields are described from their yaml, json, description and validate
// tags. Types carrying yaml tags are requested as YAML, everything else as JSON.
func GeneratePrompt[T any]() string {
	t := reflect.TypeFor[T]()
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}

	if t.Kind() != reflect.Struct {
		return fmt.Sprintf("Reply with a single %s value inside a ```json fenced block.", t.Kind())
	}

	var b strings.Builder
	if usesYAML(t) {
		b.WriteString("Reply in YAML inside a ```yaml fenced block with this structure:\n\n```yaml\n")
		writeYAMLShape(&b, t, 0)
	} else {
		b.WriteString("Reply in JSON inside a ```json fenced block with this structure:\n\n```json\n")
		writeJSONShape(&b, t, 0)
		b.WriteString("\n")
	}
	b.WriteString("```\n\nFields:\n")
	writeFieldNotes(&b, t, "")
	b.WriteString("\nFill every field from the input. Use an empty value when the input says nothing about a field.")
	return b.String()
}

// usesYAML reports whether t or any nested struct declares a yaml tag.
func usesYAML(t reflect.Type) bool {
	for _, f := range reflect.VisibleFields(t) {
		if _, ok := f.Tag.Lookup("yaml"); ok {
			return true
		}
		if inner := structOf(f.Type); inner != nil && inner != t && usesYAML(inner) {
			return true
		}
	}
	return false
}

func writeYAMLShape(b *strings.Builder, t reflect.Type, depth int) {
	pad := strings.Repeat("  ", depth)
	for _, f := range exportedFields(t) {
		name := tagName(f, "yaml", strings.ToLower(f.Name))
		if name == "-" {
			continue
		}
		ft := deref(f.Type)
		switch {
		case ft.Kind() == reflect.Struct:
			fmt.Fprintf(b, "%s%s:\n", pad, name)
			writeYAMLShape(b, ft, depth+1)
		case ft.Kind() == reflect.Slice && structOf(ft.Elem()) != nil:
			fmt.Fprintf(b, "%s%s:\n%s  -\n", pad, name, pad)
			writeYAMLShape(b, structOf(ft.Elem()), depth+2)
		case ft.Kind() == reflect.Slice:
			fmt.Fprintf(b, "%s%s: [] # list of %s\n", pad, name, deref(ft.Elem()).Kind())
		default:
			fmt.Fprintf(b, "%s%s: %s # %s\n", pad, name, zeroLiteral(ft), ft.Kind())
		}
	}
}

func writeJSONShape(b *strings.Builder, t reflect.Type, depth int) {
	pad := strings.Repeat("  ", depth)
	b.WriteString("{")
	first := true
	for _, f := range exportedFields(t) {
		name := tagName(f, "json", f.Name)
		if name == "-" {
			continue
		}
		if !first {
			b.WriteString(",")
		}
		first = false
		fmt.Fprintf(b, "\n%s  %q: ", pad, name)

		ft := deref(f.Type)
		switch {
		case ft.Kind() == reflect.Struct:
			writeJSONShape(b, ft, depth+1)
		case ft.Kind() == reflect.Slice && structOf(ft.Elem()) != nil:
			fmt.Fprintf(b, "[\n%s    ", pad)
			writeJSONShape(b, structOf(ft.Elem()), depth+2)
			fmt.Fprintf(b, "\n%s  ]", pad)
		case ft.Kind() == reflect.Slice:
			b.WriteString("[]")
		default:
			b.WriteString(zeroLiteral(ft))
		}
	}
	fmt.Fprintf(b, "\n%s}", pad)
}

func writeFieldNotes(b *strings.Builder, t reflect.Type, prefix string) {
	for _, f := range exportedFields(t) {
		name := displayName(f)
		if name == "-" {
			continue
		}
		if prefix != "" {
			name = prefix + "." + name
		}

		desc := f.Tag.Get("description")
		if desc == "" {
			desc = f.Type.String()
		}
		if rules := f.Tag.Get("validate"); rules != "" && rules != "-" {
			desc += " (" + rules + ")"
		}
		fmt.Fprintf(b, "- %s: %s\n", name, desc)

		ft := deref(f.Type)
		if ft.Kind() == reflect.Struct {
			writeFieldNotes(b, ft, name)
		} else if inner := structOf(ft); ft.Kind() == reflect.Slice && inner != nil {
			writeFieldNotes(b, inner, name+"[]")
		}
	}
}

// CheckType reports whether T can be described by GeneratePrompt: it must be a
// struct whose yaml names contain no spaces.
func CheckType[T any]() error {
	t := deref(reflect.TypeFor[T]())
	if t.Kind() != reflect.Struct {
		return fmt.Errorf("type %s is not a struct", t)
	}
	return checkFields(t, "")
}

func checkFields(t reflect.Type, path string) error {
	for _, f := range exportedFields(t) {
		fieldPath := f.Name
		if path != "" {
			fieldPath = path + "." + f.Name
		}
		if name := tagName(f, "yaml", ""); strings.ContainsAny(name, " \t") {
			return fmt.Errorf("field %s: yaml name %q contains spaces", fieldPath, name)
		}
		if inner := structOf(f.Type); inner != nil {
			if err := checkFields(inner, fieldPath); err != nil {
				return err
			}
		}
	}
	return nil
}

func exportedFields(t reflect.Type) []reflect.StructField {
	var fields []reflect.StructField
	for i := 0; i < t.NumField(); i++ {
		if f := t.Field(i); f.IsExported() {
			fields = append(fields, f)
		}
	}
	return fields
}

// tagName returns the name part of a struct tag, or def when absent.
func tagName(f reflect.StructField, key, def string) string {
	name, _, _ := strings.Cut(f.Tag.Get(key), ",")
	if name == "" {
		return def
	}
	return name
}

func displayName(f reflect.StructField) string {
	return tagName(f, "yaml", tagName(f, "json", f.Name))
}

func deref(t reflect.Type) reflect.Type {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return t
}

// structOf returns the struct type behind t, a slice of t or a pointer to t.
func structOf(t reflect.Type) reflect.Type {
	t = deref(t)
	if t.Kind() == reflect.Slice {
		t = deref(t.Elem())
	}
	if t.Kind() == reflect.Struct {
		return t
	}
	return nil
}

func zeroLiteral(t reflect.Type) string {
	switch t.Kind() {
	case reflect.String:
		return `""`
	case reflect.Bool:
		return "false"
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return "0"
	case reflect.Float32, reflect.Float64:
		return "0.0"
	default:
		return "null"
	}
}

package confloader

import (
	"reflect"
	"strings"
)

const tagName = "koanf"

// fieldInfo describes a leaf configuration key.
type fieldInfo struct {
	kind reflect.Kind
}

// coerce converts a raw environment value for the field. Only slices need
// help: everything else is handled by weakly typed decoding.
func (f fieldInfo) coerce(raw string) any {
	if f.kind != reflect.Slice {
		return raw
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// structFields returns the dotted leaf keys declared by koanf tags.
func structFields(t reflect.Type) map[string]fieldInfo {
	out := make(map[string]fieldInfo)
	walkFields(t, "", func(key string, ft reflect.Type) {
		out[key] = fieldInfo{kind: ft.Kind()}
	})
	return out
}

func walkFields(t reflect.Type, prefix string, fn func(key string, ft reflect.Type)) {
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		name, ok := keyName(f)
		if !ok {
			continue
		}
		key := prefix + name
		if isSection(f.Type) {
			walkFields(f.Type, key+".", fn)
			continue
		}
		fn(key, f.Type)
	}
}

// structToMap converts a tagged struct value to the nested map koanf
// expects, so defaults flow through the same merge as every other source.
func structToMap(v reflect.Value) map[string]any {
	out := make(map[string]any)
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		name, ok := keyName(f)
		if !ok {
			continue
		}
		fv := v.Field(i)
		if isSection(f.Type) {
			out[name] = structToMap(fv)
			continue
		}
		if fv.Kind() == reflect.Slice {
			if fv.IsNil() {
				continue
			}
			cp := reflect.MakeSlice(fv.Type(), fv.Len(), fv.Len())
			reflect.Copy(cp, fv)
			out[name] = cp.Interface()
			continue
		}
		out[name] = fv.Interface()
	}
	return out
}

// setNested stores value at a dotted key inside m.
func setNested(m map[string]any, key string, value any) {
	parts := strings.Split(key, ".")
	for _, p := range parts[:len(parts)-1] {
		next, ok := m[p].(map[string]any)
		if !ok {
			next = make(map[string]any)
			m[p] = next
		}
		m = next
	}
	m[parts[len(parts)-1]] = value
}

func keyName(f reflect.StructField) (string, bool) {
	if !f.IsExported() {
		return "", false
	}
	tag := f.Tag.Get(tagName)
	if tag == "-" {
		return "", false
	}
	if tag == "" {
		return strings.ToLower(f.Name), true
	}
	return strings.Split(tag, ",")[0], true
}

// isSection reports whether t is a nested configuration struct. Durations
// and other leaf types are not structs, so only plain structs recurse.
func isSection(t reflect.Type) bool {
	return t.Kind() == reflect.Struct
}

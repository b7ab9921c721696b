package output

import (
	"fmt"
	"io"
	"reflect"
	"sort"
	"strings"
	"time"
	"unicode"

	"github.com/jedib0t/go-pretty/v6/table"
)

// TableFormatter renders structs, slices of structs and maps with go-pretty.
// Struct fields become columns named after their json tag. A field tagged
// table:"wide" is shown only with Wide; table:"-" is never shown. Values a
// table cannot hold fall back to JSON.
type TableFormatter struct {
	Wide bool
}

func (f *TableFormatter) Format(w io.Writer, data any) error {
	if data == nil {
		return nil
	}
	header, rows, ok := tabulate(reflect.ValueOf(data), f.Wide)
	if !ok {
		return (&JSONFormatter{}).Format(w, data)
	}
	if len(rows) == 0 {
		return nil
	}

	tw := table.NewWriter()
	tw.SetStyle(table.StyleLight)
	tw.AppendHeader(header)
	tw.AppendRows(rows)
	_, err := io.WriteString(w, tw.Render()+"\n")
	return err
}

// tabulate turns v into a header and rows. Header cells are snake_case;
// the light style upper-cases them.
func tabulate(v reflect.Value, wide bool) (table.Row, []table.Row, bool) {
	v = deref(v)
	if !v.IsValid() {
		return nil, nil, false
	}

	switch v.Kind() {
	case reflect.Slice, reflect.Array:
		elem := v.Type().Elem()
		if elem.Kind() == reflect.Pointer {
			elem = elem.Elem()
		}
		if elem.Kind() != reflect.Struct {
			rows := make([]table.Row, 0, v.Len())
			for i := 0; i < v.Len(); i++ {
				rows = append(rows, table.Row{formatValue(v.Index(i))})
			}
			return table.Row{"value"}, rows, true
		}
		names, fields := columns(elem, wide)
		rows := make([]table.Row, 0, v.Len())
		for i := 0; i < v.Len(); i++ {
			item := deref(v.Index(i))
			if !item.IsValid() {
				continue
			}
			row := make(table.Row, len(fields))
			for j, fi := range fields {
				row[j] = formatValue(item.Field(fi))
			}
			rows = append(rows, row)
		}
		return names, rows, true

	case reflect.Map:
		rows := make([]table.Row, 0, v.Len())
		iter := v.MapRange()
		for iter.Next() {
			rows = append(rows, table.Row{formatValue(iter.Key()), formatValue(iter.Value())})
		}
		sort.Slice(rows, func(i, j int) bool { return rows[i][0].(string) < rows[j][0].(string) })
		return table.Row{"key", "value"}, rows, true

	case reflect.Struct:
		var rows []table.Row
		for i := 0; i < v.NumField(); i++ {
			field := v.Type().Field(i)
			if !field.IsExported() || field.Tag.Get("table") == "-" {
				continue
			}
			rows = append(rows, table.Row{jsonName(field), formatValue(v.Field(i))})
		}
		return table.Row{"field", "value"}, rows, true
	}
	return nil, nil, false
}

// deref follows pointers and interfaces; a nil one yields the zero Value.
func deref(v reflect.Value) reflect.Value {
	for v.IsValid() && (v.Kind() == reflect.Pointer || v.Kind() == reflect.Interface) {
		if v.IsNil() {
			return reflect.Value{}
		}
		v = v.Elem()
	}
	return v
}

// columns returns the header and field indices of struct type t.
func columns(t reflect.Type, wide bool) (table.Row, []int) {
	var names table.Row
	var fields []int
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if !field.IsExported() {
			continue
		}
		if tag := field.Tag.Get("table"); tag == "-" || (tag == "wide" && !wide) {
			continue
		}
		names = append(names, toSnakeCase(jsonName(field)))
		fields = append(fields, i)
	}
	return names, fields
}

func jsonName(field reflect.StructField) string {
	name, _, _ := strings.Cut(field.Tag.Get("json"), ",")
	if name == "" || name == "-" {
		return field.Name
	}
	return name
}

var timeType = reflect.TypeOf(time.Time{})

// formatValue renders one cell. Absent values print as "-".
func formatValue(v reflect.Value) string {
	v = deref(v)
	if !v.IsValid() {
		return "-"
	}
	if v.Type() == timeType {
		t := v.Interface().(time.Time)
		if t.IsZero() {
			return "-"
		}
		return t.Local().Format("2006-01-02 15:04")
	}

	switch v.Kind() {
	case reflect.String:
		if v.Len() == 0 {
			return "-"
		}
		return v.String()
	case reflect.Bool:
		if v.Bool() {
			return "yes"
		}
		return "no"
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return fmt.Sprint(v.Int())
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return fmt.Sprint(v.Uint())
	case reflect.Float32, reflect.Float64:
		return fmt.Sprintf("%.2f", v.Float())
	case reflect.Slice, reflect.Array:
		if v.Len() == 0 {
			return "-"
		}
		return fmt.Sprintf("[%d items]", v.Len())
	case reflect.Map:
		if v.Len() == 0 {
			return "-"
		}
		return fmt.Sprintf("{%d keys}", v.Len())
	}
	return fmt.Sprint(v.Interface())
}

// toSnakeCase converts a camelCase name to snake_case. Runs of capitals
// stay one word: "ID" is "id", "NotesURL" is "notes_url".
func toSnakeCase(s string) string {
	var b strings.Builder
	lower := false
	for _, r := range s {
		if unicode.IsUpper(r) && lower {
			b.WriteByte('_')
		}
		lower = unicode.IsLower(r) || unicode.IsDigit(r)
		b.WriteRune(unicode.ToLower(r))
	}
	return b.String()
}

package render

import (
	"fmt"
	"io"
	"reflect"
	"strings"
	"text/tabwriter"
)

// renderTable writes a slice as one table, or a struct as aligned
// "key: value" lines. Nested structs are flattened with dotted keys and
// each slice field gets its own table below the scalars, so an inspect
// response lists its blocks instead of "[n items]".
func (r *Renderer) renderTable(data any) error {
	v := indirect(reflect.ValueOf(data))
	switch v.Kind() {
	case reflect.Slice, reflect.Array:
		return writeRows(r.out, v)
	case reflect.Struct:
		var sections []section
		w := newTabWriter(r.out)
		writeFields(w, v, "", &sections)
		if err := w.Flush(); err != nil {
			return err
		}
		for _, s := range sections {
			fmt.Fprintf(r.out, "\n%s:\n", s.name)
			if err := writeRows(r.out, s.rows); err != nil {
				return err
			}
		}
		return nil
	default:
		_, err := fmt.Fprintf(r.out, "%v\n", data)
		return err
	}
}

// section is a slice field deferred until after the scalar fields.
type section struct {
	name string
	rows reflect.Value
}

// column is a visible struct field and its json name.
type column struct {
	name  string
	index int
}

func newTabWriter(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
}

// columns lists exported fields that are not tagged json:"-".
func columns(t reflect.Type) []column {
	var cols []column
	for i := range t.NumField() {
		f := t.Field(i)
		tag := f.Tag.Get("json")
		if !f.IsExported() || tag == "-" {
			continue
		}
		name, _, _ := strings.Cut(tag, ",")
		if name == "" {
			name = strings.ToLower(f.Name)
		}
		cols = append(cols, column{name: name, index: i})
	}
	return cols
}

func writeFields(w io.Writer, v reflect.Value, prefix string, sections *[]section) {
	for _, c := range columns(v.Type()) {
		key := prefix + c.name
		fv := indirect(v.Field(c.index))
		switch {
		case fv.Kind() == reflect.Struct:
			writeFields(w, fv, key+".", sections)
		case isTableSlice(fv):
			*sections = append(*sections, section{name: key, rows: fv})
		default:
			fmt.Fprintf(w, "%s:\t%s\n", key, cell(fv))
		}
	}
}

// isTableSlice reports whether v is a slice of structs worth its own table.
func isTableSlice(v reflect.Value) bool {
	if v.Kind() != reflect.Slice {
		return false
	}
	elem := v.Type().Elem()
	if elem.Kind() == reflect.Ptr {
		elem = elem.Elem()
	}
	return elem.Kind() == reflect.Struct
}

func writeRows(out io.Writer, v reflect.Value) error {
	if v.Len() == 0 {
		_, err := fmt.Fprintln(out, "(no results)")
		return err
	}

	elem := v.Type().Elem()
	if elem.Kind() == reflect.Ptr {
		elem = elem.Elem()
	}
	w := newTabWriter(out)
	if elem.Kind() != reflect.Struct {
		for i := range v.Len() {
			fmt.Fprintln(w, cell(v.Index(i)))
		}
		return w.Flush()
	}

	cols := columns(elem)
	names := make([]string, len(cols))
	for i, c := range cols {
		names[i] = c.name
	}
	fmt.Fprintln(w, strings.Join(names, "\t"))

	row := make([]string, len(cols))
	for i := range v.Len() {
		item := indirect(v.Index(i))
		for j, c := range cols {
			row[j] = ""
			if item.IsValid() {
				row[j] = cell(item.Field(c.index))
			}
		}
		fmt.Fprintln(w, strings.Join(row, "\t"))
	}
	return w.Flush()
}

// cell formats one value. Payload-sized values are summarised.
func cell(v reflect.Value) string {
	v = indirect(v)
	if !v.IsValid() {
		return ""
	}
	switch v.Kind() {
	case reflect.Slice:
		if v.Type().Elem().Kind() == reflect.Uint8 {
			return fmt.Sprintf("[%d bytes]", v.Len())
		}
		return fmt.Sprintf("[%d items]", v.Len())
	case reflect.Map:
		return fmt.Sprintf("{%d keys}", v.Len())
	case reflect.Struct:
		return "{...}"
	default:
		return fmt.Sprint(v.Interface())
	}
}

// indirect follows pointers. A nil pointer yields the zero Value.
func indirect(v reflect.Value) reflect.Value {
	for v.Kind() == reflect.Ptr || v.Kind() == reflect.Interface {
		if v.IsNil() {
			return reflect.Value{}
		}
		v = v.Elem()
	}
	return v
}

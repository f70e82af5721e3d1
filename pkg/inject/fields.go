package inject

import (
	"reflect"
	"sort"
	"strings"
	"sync"
	"unicode"
	"unicode/utf8"
	"unsafe"

	"github.com/viant/xunsafe"
)

// Field describes one settable attribute of a settings struct
type Field struct {
	// Name is the key users write: the json tag name, or the Go name with a
	// lower-case first letter
	Name   string
	GoName string
	Type   reflect.Type

	xField *xunsafe.Field
}

// Descriptor returns the field's type descriptor
func (f *Field) Descriptor() string {
	return Descriptor(f.Type)
}

// Value returns the field's current value in the struct at holder
func (f *Field) Value(holder unsafe.Pointer) interface{} {
	return reflect.NewAt(f.Type, f.xField.Pointer(holder)).Elem().Interface()
}

// set writes v into the struct at holder. It works for unexported fields.
func (f *Field) set(holder unsafe.Pointer, v interface{}) {
	reflect.NewAt(f.Type, f.xField.Pointer(holder)).Elem().Set(reflect.ValueOf(v))
}

// FieldTable indexes the declared fields of one struct type by name
type FieldTable struct {
	Type   reflect.Type
	byName map[string]*Field
	fields []*Field
}

// Lookup returns the field with the given name
func (t *FieldTable) Lookup(name string) (*Field, bool) {
	f, ok := t.byName[name]
	return f, ok
}

// Fields returns all fields sorted by name
func (t *FieldTable) Fields() []*Field {
	return t.fields
}

var tableCache sync.Map // map[reflect.Type]*FieldTable

// Fields returns the field table for a struct type or pointer to struct
// type. Tables are built once per type.
func Fields(t reflect.Type) *FieldTable {
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if cached, ok := tableCache.Load(t); ok {
		return cached.(*FieldTable)
	}
	table := buildTable(t)
	actual, _ := tableCache.LoadOrStore(t, table)
	return actual.(*FieldTable)
}

func buildTable(t reflect.Type) *FieldTable {
	table := &FieldTable{
		Type:   t,
		byName: make(map[string]*Field),
	}
	if t.Kind() != reflect.Struct {
		return table
	}
	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		if sf.Anonymous || sf.Tag.Get("inject") == "-" {
			continue
		}
		f := &Field{
			Name:   fieldKey(sf),
			GoName: sf.Name,
			Type:   sf.Type,
			xField: xunsafe.NewField(sf),
		}
		table.byName[f.Name] = f
		table.fields = append(table.fields, f)
	}
	sort.Slice(table.fields, func(i, j int) bool {
		return table.fields[i].Name < table.fields[j].Name
	})
	return table
}

func fieldKey(sf reflect.StructField) string {
	if tag := sf.Tag.Get("json"); tag != "" {
		name := strings.Split(tag, ",")[0]
		if name != "" && name != "-" {
			return name
		}
	}
	r, size := utf8.DecodeRuneInString(sf.Name)
	return string(unicode.ToLower(r)) + sf.Name[size:]
}

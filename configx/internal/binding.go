package internal

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"
)

var durationType = reflect.TypeOf(time.Duration(0))

// BindToStruct binds configuration values to struct fields using env tags.
//
// Tags:
//   - env:"KEY" reads KEY from the snapshot, falling back to default:"...".
//   - envPrefix:"P_" on a struct or pointer-to-struct field prepends P_ to every
//     key inside it. Prefixes accumulate through nesting.
//
// A pointer-to-struct field is a presence-gated section: it is allocated and
// bound only when at least one of its keys exists in the snapshot, otherwise
// it is set to nil.
func BindToStruct(snapshot map[string]string, target any) error {
	targetValue := reflect.ValueOf(target)
	if targetValue.Kind() != reflect.Ptr || targetValue.IsNil() || targetValue.Elem().Kind() != reflect.Struct {
		return fmt.Errorf("target must be a pointer to struct")
	}

	return bindStructFields(snapshot, targetValue.Elem(), "")
}

func bindStructFields(snapshot map[string]string, structValue reflect.Value, prefix string) error {
	structType := structValue.Type()

	for i := 0; i < structValue.NumField(); i++ {
		field := structValue.Field(i)
		fieldType := structType.Field(i)

		if !field.CanSet() {
			continue
		}

		nested := prefix + fieldType.Tag.Get("envPrefix")

		if isStructPtr(fieldType.Type) {
			if !hasAnyKey(snapshot, fieldType.Type.Elem(), nested) {
				field.Set(reflect.Zero(fieldType.Type))
				continue
			}
			section := reflect.New(fieldType.Type.Elem())
			if err := bindStructFields(snapshot, section.Elem(), nested); err != nil {
				return fmt.Errorf("failed to bind section %s: %w", fieldType.Name, err)
			}
			field.Set(section)
			continue
		}

		if field.Kind() == reflect.Struct && field.Type() != durationType {
			if err := bindStructFields(snapshot, field, nested); err != nil {
				return fmt.Errorf("failed to bind nested struct %s: %w", fieldType.Name, err)
			}
			continue
		}

		envTag := fieldType.Tag.Get("env")
		if envTag == "" {
			continue
		}
		key := prefix + envTag

		value, exists := snapshot[key]
		if !exists {
			value = fieldType.Tag.Get("default")
		}

		if err := setFieldValue(field, value); err != nil {
			return fmt.Errorf("failed to set field %s from %s: %w", fieldType.Name, key, err)
		}
	}

	return nil
}

// Keys lists every snapshot key target reads, sections included.
func Keys(target any) []string {
	t := reflect.TypeOf(target)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct {
		return nil
	}
	var keys []string
	collectKeys(t, "", &keys)
	return keys
}

func collectKeys(t reflect.Type, prefix string, keys *[]string) {
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.IsExported() {
			continue
		}
		nested := prefix + f.Tag.Get("envPrefix")
		ft := f.Type
		if isStructPtr(ft) {
			ft = ft.Elem()
		}
		if ft.Kind() == reflect.Struct && ft != durationType {
			collectKeys(ft, nested, keys)
			continue
		}
		if tag := f.Tag.Get("env"); tag != "" {
			*keys = append(*keys, prefix+tag)
		}
	}
}

func hasAnyKey(snapshot map[string]string, t reflect.Type, prefix string) bool {
	var keys []string
	collectKeys(t, prefix, &keys)
	for _, k := range keys {
		if _, ok := snapshot[k]; ok {
			return true
		}
	}
	return false
}

func isStructPtr(t reflect.Type) bool {
	return t.Kind() == reflect.Ptr && t.Elem().Kind() == reflect.Struct
}

func setFieldValue(field reflect.Value, value string) error {
	if value == "" {
		return nil
	}

	switch field.Kind() {
	case reflect.String:
		field.SetString(value)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		if field.Type() == durationType {
			d, err := ParseDuration(value)
			if err != nil {
				return err
			}
			field.SetInt(int64(d))
			return nil
		}
		intValue, err := strconv.ParseInt(value, 10, field.Type().Bits())
		if err != nil {
			return err
		}
		field.SetInt(intValue)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		uintValue, err := strconv.ParseUint(value, 10, field.Type().Bits())
		if err != nil {
			return err
		}
		field.SetUint(uintValue)
	case reflect.Bool:
		boolValue, err := strconv.ParseBool(value)
		if err != nil {
			return err
		}
		field.SetBool(boolValue)
	case reflect.Float32, reflect.Float64:
		floatValue, err := strconv.ParseFloat(value, field.Type().Bits())
		if err != nil {
			return err
		}
		field.SetFloat(floatValue)
	case reflect.Slice:
		if field.Type().Elem().Kind() != reflect.String {
			return fmt.Errorf("unsupported slice type: %s", field.Type())
		}
		var items []string
		for _, part := range strings.Split(value, ",") {
			if part = strings.TrimSpace(part); part != "" {
				items = append(items, part)
			}
		}
		field.Set(reflect.ValueOf(items).Convert(field.Type()))
	default:
		return fmt.Errorf("unsupported field type: %s", field.Kind())
	}

	return nil
}

// ParseDuration accepts Go duration strings ("1.5s", "200ms") and bare
// numbers, which are read as seconds ("0.2" is 200ms). Negative values are
// rejected.
func ParseDuration(value string) (time.Duration, error) {
	d, err := time.ParseDuration(value)
	if err != nil {
		seconds, ferr := strconv.ParseFloat(value, 64)
		if ferr != nil {
			return 0, fmt.Errorf("invalid duration %q", value)
		}
		d = time.Duration(seconds * float64(time.Second))
	}
	if d < 0 {
		return 0, fmt.Errorf("negative duration %q", value)
	}
	return d, nil
}

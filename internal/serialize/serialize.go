// Package serialize converts typed resource descriptors into CloudFormation
// property maps and derives logical IDs from descriptor names.
package serialize

import (
	"encoding/json"
	"reflect"
	"sort"
	"strings"
	"unicode"

	"github.com/cleanserverless/stackgen"
)

// Properties serializes a resource descriptor to CloudFormation properties.
// Field names come from json tags, zero-valued fields are omitted and values
// implementing json.Marshaler (intrinsics) are emitted in their JSON form.
func Properties(r stackgen.Resource) (map[string]any, error) {
	val := reflect.ValueOf(r)
	if val.Kind() == reflect.Ptr {
		val = val.Elem()
	}
	if val.Kind() != reflect.Struct {
		return nil, nil
	}
	return structFields(val)
}

func structFields(val reflect.Value) (map[string]any, error) {
	result := make(map[string]any)
	typ := val.Type()

	for i := 0; i < val.NumField(); i++ {
		field := typ.Field(i)
		if !field.IsExported() {
			continue
		}

		name := fieldName(field)
		if name == "-" {
			continue
		}

		fieldVal := val.Field(i)
		if isZeroValue(fieldVal) {
			continue
		}

		serialized, err := value(fieldVal)
		if err != nil {
			return nil, err
		}
		if serialized != nil {
			result[name] = serialized
		}
	}

	return result, nil
}

// fieldName returns the JSON field name for a struct field.
func fieldName(field reflect.StructField) string {
	tag := field.Tag.Get("json")
	name, _, _ := strings.Cut(tag, ",")
	if name == "" {
		return field.Name
	}
	return name
}

// isZeroValue returns true if the value is the zero value for its type.
func isZeroValue(v reflect.Value) bool {
	switch v.Kind() {
	case reflect.Ptr, reflect.Interface:
		return v.IsNil()
	case reflect.Slice, reflect.Map:
		return v.IsNil() || v.Len() == 0
	case reflect.String:
		return v.String() == ""
	case reflect.Bool:
		return !v.Bool()
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return v.Int() == 0
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return v.Uint() == 0
	case reflect.Float32, reflect.Float64:
		return v.Float() == 0
	case reflect.Struct:
		if v.CanInterface() {
			if zeroer, ok := v.Interface().(interface{ IsZero() bool }); ok {
				return zeroer.IsZero()
			}
		}
		return false
	default:
		return false
	}
}

// value converts a reflect.Value to a JSON-compatible value.
// Map entries and slice elements are kept even when empty.
func value(v reflect.Value) (any, error) {
	if !v.IsValid() {
		return nil, nil
	}

	if v.Kind() == reflect.Ptr || v.Kind() == reflect.Interface {
		if v.IsNil() {
			return nil, nil
		}
		return value(v.Elem())
	}

	if v.CanInterface() {
		if marshaler, ok := v.Interface().(json.Marshaler); ok {
			return viaJSON(marshaler)
		}
	}

	switch v.Kind() {
	case reflect.Struct:
		return structFields(v)

	case reflect.Slice:
		if v.Len() == 0 {
			return nil, nil
		}
		result := make([]any, v.Len())
		for i := 0; i < v.Len(); i++ {
			elem, err := value(v.Index(i))
			if err != nil {
				return nil, err
			}
			result[i] = elem
		}
		return result, nil

	case reflect.Map:
		result := make(map[string]any, v.Len())
		iter := v.MapRange()
		for iter.Next() {
			val, err := value(iter.Value())
			if err != nil {
				return nil, err
			}
			result[iter.Key().String()] = val
		}
		return result, nil

	case reflect.String:
		return v.String(), nil

	case reflect.Bool:
		return v.Bool(), nil

	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return v.Int(), nil

	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return v.Uint(), nil

	case reflect.Float32, reflect.Float64:
		return v.Float(), nil

	default:
		return viaJSON(v.Interface())
	}
}

func viaJSON(v any) (any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var result any
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, err
	}
	return result, nil
}

// References returns the sorted, de-duplicated logical names targeted by Ref
// and Fn::GetAtt anywhere in a serialized property tree. Pseudo parameters
// (AWS::*) are skipped.
func References(props map[string]any) []string {
	seen := make(map[string]bool)
	collectRefs(props, seen)

	refs := make([]string, 0, len(seen))
	for name := range seen {
		refs = append(refs, name)
	}
	sort.Strings(refs)
	return refs
}

func collectRefs(v any, seen map[string]bool) {
	switch val := v.(type) {
	case map[string]any:
		if ref, ok := val["Ref"].(string); ok && len(val) == 1 {
			if !strings.HasPrefix(ref, "AWS::") {
				seen[ref] = true
			}
			return
		}
		if getAtt, ok := val["Fn::GetAtt"].([]any); ok && len(val) == 1 {
			if len(getAtt) > 0 {
				if name, ok := getAtt[0].(string); ok {
					seen[name] = true
				}
			}
			return
		}
		for _, child := range val {
			collectRefs(child, seen)
		}
	case []any:
		for _, child := range val {
			collectRefs(child, seen)
		}
	}
}

// LogicalID joins name parts into a CloudFormation logical ID. Each part is
// PascalCased and stripped of characters a logical ID cannot hold:
//
//	LogicalID("deleteMicropost", "Function") -> "DeleteMicropostFunction"
//	LogicalID("{user_id}")                   -> "UserId"
func LogicalID(parts ...string) string {
	var b strings.Builder
	for _, part := range parts {
		b.WriteString(pascalCase(part))
	}
	return b.String()
}

// pascalCase upper-cases the first letter of every alphanumeric run and drops
// everything else: "user_id" -> "UserId", "s3Handler" -> "S3Handler".
func pascalCase(s string) string {
	var result strings.Builder
	capitalizeNext := true

	for _, r := range s {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			capitalizeNext = true
			continue
		}
		if capitalizeNext {
			result.WriteRune(unicode.ToUpper(r))
			capitalizeNext = false
		} else {
			result.WriteRune(r)
		}
	}

	return result.String()
}

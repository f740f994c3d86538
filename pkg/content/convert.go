package content

import (
	"fmt"
	"reflect"
	"time"

	"github.com/araddon/dateparse"
	"github.com/go-viper/mapstructure/v2"
)

// Converter fills a value of a target type from parsed content.
type Converter interface {
	// CanConvert reports whether the converter handles values of type t.
	CanConvert(t reflect.Type) bool
	// Convert stores data into target, an addressable value of a type the
	// converter accepted.
	Convert(data any, target reflect.Value) error
}

// Decoder is implemented by types that populate themselves from parsed
// content.
type Decoder interface {
	DecodeContent(data any) error
}

// Validator is implemented by types that check themselves after conversion.
type Validator interface {
	Validate() error
}

// Converters is the default converter list. The first converter whose
// CanConvert accepts the target type is used.
var Converters = []Converter{
	DecoderConverter{},
	StructConverter{},
	PassthroughConverter{},
}

var (
	decoderType = reflect.TypeOf((*Decoder)(nil)).Elem()
	timeType    = reflect.TypeOf(time.Time{})
)

// DecoderConverter hands the data to types whose pointer implements Decoder.
type DecoderConverter struct{}

func (DecoderConverter) CanConvert(t reflect.Type) bool {
	if t.Kind() == reflect.Pointer {
		return t.Implements(decoderType)
	}
	return reflect.PointerTo(t).Implements(decoderType)
}

func (DecoderConverter) Convert(data any, target reflect.Value) error {
	if target.Kind() == reflect.Pointer && target.IsNil() {
		target.Set(reflect.New(target.Type().Elem()))
	}
	ptr, _ := recordPointer(target)
	return ptr.(Decoder).DecodeContent(data)
}

// StructConverter decodes into structs, maps, slices and scalars with
// mapstructure. Fields match the "content" struct tag or, without one,
// the field name case-insensitively. Strings decode into time.Time fields
// in any format dateparse recognises.
type StructConverter struct{}

func (StructConverter) CanConvert(t reflect.Type) bool {
	return t.Kind() != reflect.Interface
}

func (StructConverter) Convert(data any, target reflect.Value) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			dateHook,
			mapstructure.StringToTimeDurationHookFunc(),
		),
		WeaklyTypedInput: true,
		TagName:          "content",
		Result:           target.Addr().Interface(),
	})
	if err != nil {
		return err
	}
	return dec.Decode(data)
}

func dateHook(from reflect.Type, to reflect.Type, data any) (any, error) {
	if to != timeType || from.Kind() != reflect.String {
		return data, nil
	}
	t, err := dateparse.ParseAny(data.(string))
	if err != nil {
		return nil, fmt.Errorf("invalid date %q: %w", data, err)
	}
	return t, nil
}

// PassthroughConverter stores parsed data as is into interface targets.
type PassthroughConverter struct{}

func (PassthroughConverter) CanConvert(t reflect.Type) bool {
	return t.Kind() == reflect.Interface
}

func (PassthroughConverter) Convert(data any, target reflect.Value) error {
	if data == nil {
		return nil
	}
	v := reflect.ValueOf(data)
	if !v.Type().AssignableTo(target.Type()) {
		return fmt.Errorf("cannot use %T as %s", data, target.Type())
	}
	target.Set(v)
	return nil
}

// convert fills target from data with the first matching converter and
// validates the result.
func convert(list []Converter, data any, target reflect.Value) error {
	for _, c := range list {
		if !c.CanConvert(target.Type()) {
			continue
		}
		if err := c.Convert(data, target); err != nil {
			return err
		}
		return validate(target)
	}
	return fmt.Errorf("no converter for %s", target.Type())
}

func validate(target reflect.Value) error {
	ptr, ok := recordPointer(target)
	if !ok {
		return nil
	}
	if v, ok := ptr.(Validator); ok {
		return v.Validate()
	}
	return nil
}

// recordPointer returns a pointer to the record held in v: v itself when
// it is a non-nil pointer, otherwise its address.
func recordPointer(v reflect.Value) (any, bool) {
	if v.Kind() == reflect.Pointer {
		if v.IsNil() {
			return nil, false
		}
		return v.Interface(), true
	}
	return v.Addr().Interface(), true
}

package opt

import (
	"reflect"

	"github.com/mitchellh/mapstructure"
)

// EnumDecodeHook lets Method, FailurePolicy and ClipType be written by name
// in configuration files.
func EnumDecodeHook() mapstructure.DecodeHookFuncType {
	return func(f reflect.Type, t reflect.Type, data interface{}) (interface{}, error) {
		if f.Kind() != reflect.String {
			return data, nil
		}
		name := reflect.ValueOf(data).String()
		switch t {
		case reflect.TypeOf(Method(0)):
			return ParseMethod(name)
		case reflect.TypeOf(FailurePolicy(0)):
			return ParseFailurePolicy(name)
		case reflect.TypeOf(ClipType(0)):
			return ParseClipType(name)
		}
		return data, nil
	}
}

// DecodeSettings overlays a generic map (as produced by a config file
// loader) onto DefaultSettings.
func DecodeSettings(input map[string]interface{}) (Settings, error) {
	s := DefaultSettings()
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			EnumDecodeHook(),
			mapstructure.StringToSliceHookFunc(","),
		),
		WeaklyTypedInput: true,
		Result:           &s,
	})
	if err != nil {
		return s, err
	}
	if err := decoder.Decode(input); err != nil {
		return s, err
	}
	return s, nil
}

package tui

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"

	"github.com/charmbracelet/huh"
)

// AutoForm generates a huh.Form from a struct pointer using reflection,
// parsing the `tui:"..."` tag on each field to configure its prompt. It
// returns the form plus an apply function: huh's Input/Confirm/Select
// fields can only bind to string/bool targets directly, so numeric
// fields are backed by a string buffer during editing and apply copies
// the parsed values back into v once the form has been run.
func AutoForm(v any) (*huh.Form, func() error) {
	val := reflect.ValueOf(v)
	if val.Kind() != reflect.Ptr || val.Elem().Kind() != reflect.Struct {
		panic("AutoForm requires a pointer to a struct")
	}

	el := val.Elem()
	t := el.Type()
	var fields []huh.Field
	var applies []func() error

	for i := 0; i < el.NumField(); i++ {
		field := el.Field(i)
		fieldType := t.Field(i)
		tag := fieldType.Tag.Get("tui")
		if tag == "" {
			continue
		}

		props := parseTag(tag)
		title := props["title"]
		if title == "" {
			title = fieldType.Name
		}
		desc := props["desc"]

		switch field.Kind() {
		case reflect.String:
			if optsStr, ok := props["options"]; ok {
				var selectOpts []huh.Option[string]
				for _, o := range strings.Split(optsStr, ",") {
					parts := strings.SplitN(o, ":", 2)
					key, value := strings.TrimSpace(parts[0]), strings.TrimSpace(parts[0])
					if len(parts) == 2 {
						value = strings.TrimSpace(parts[1])
					}
					selectOpts = append(selectOpts, huh.NewOption(key, value))
				}
				sel := huh.NewSelect[string]().
					Title(title).
					Description(desc).
					Options(selectOpts...).
					Value(field.Addr().Interface().(*string))
				fields = append(fields, sel)
				continue
			}

			input := huh.NewInput().Title(title).Description(desc).
				Value(field.Addr().Interface().(*string))
			if vKey, ok := props["validate"]; ok {
				if validator, exists := Validators[vKey]; exists {
					input.Validate(validator)
				}
			}
			fields = append(fields, input)

		case reflect.Bool:
			fields = append(fields, huh.NewConfirm().
				Title(title).Description(desc).
				Value(field.Addr().Interface().(*bool)))

		case reflect.Int, reflect.Int64, reflect.Uint32, reflect.Uint64:
			var buf string
			if field.Kind() == reflect.Uint32 || field.Kind() == reflect.Uint64 {
				buf = fmt.Sprintf("%d", field.Uint())
			} else {
				buf = fmt.Sprintf("%d", field.Int())
			}
			input := huh.NewInput().Title(title).Description(desc).
				Validate(intValidator).
				Value(&buf)
			fields = append(fields, input)

			target, kind := field, field.Kind()
			ptr := &buf
			applies = append(applies, func() error {
				n, err := strconv.ParseInt(strings.TrimSpace(*ptr), 10, 64)
				if err != nil {
					return fmt.Errorf("%s: %w", title, err)
				}
				if kind == reflect.Uint32 || kind == reflect.Uint64 {
					target.SetUint(uint64(n))
				} else {
					target.SetInt(n)
				}
				return nil
			})
		}
	}

	form := huh.NewForm(huh.NewGroup(fields...)).WithTheme(huh.ThemeBase16())
	apply := func() error {
		for _, a := range applies {
			if err := a(); err != nil {
				return err
			}
		}
		return nil
	}
	return form, apply
}

func intValidator(s string) error {
	if _, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64); err != nil {
		return fmt.Errorf("must be a whole number")
	}
	return nil
}

// parseTag parses "key=val,key2=val2" into a map.
func parseTag(tag string) map[string]string {
	res := make(map[string]string)
	for _, part := range strings.Split(tag, ",") {
		kv := strings.SplitN(part, "=", 2)
		if len(kv) == 2 {
			res[strings.TrimSpace(kv[0])] = strings.TrimSpace(kv[1])
		}
	}
	return res
}

// Validators is a small registry of reusable huh.Input validators keyed
// by the `validate` tag value.
var Validators = map[string]func(string) error{
	"required": func(s string) error {
		if strings.TrimSpace(s) == "" {
			return fmt.Errorf("this field is required")
		}
		return nil
	},
}

package config

import (
	"errors"
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/pelletier/go-toml/v2"
	"github.com/smazurov/camrecorder/internal/logging"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// EnvPrefix is prepended to the env tag of every option, e.g. CAMRECORDER_PORT.
const EnvPrefix = "CAMRECORDER_"

var durationType = reflect.TypeOf(time.Duration(0))

// LoadConfig fills the tagged fields of opts, a pointer to a struct, from the
// TOML file named by its Config field and then from CAMRECORDER_* variables.
// Flags set on cmd's command line are left alone, so the order of precedence
// is flags, environment, file, defaults.
//
// A value that does not fit its field is reported but does not stop the
// remaining fields from loading.
func LoadConfig(opts any, cmd *cobra.Command) error {
	v := reflect.ValueOf(opts)
	if v.Kind() != reflect.Pointer || v.Elem().Kind() != reflect.Struct {
		return fmt.Errorf("config: want pointer to struct, got %T", opts)
	}
	v = v.Elem()
	skip := changedFlags(cmd)

	var errs []error
	if path := configPath(v); path != "" {
		doc, err := readTOML(path)
		if err != nil {
			return err
		}
		if doc != nil {
			errs = append(errs, applyTOML(v, doc, skip)...)
		}
	}
	errs = append(errs, applyEnv(v, skip)...)
	return errors.Join(errs...)
}

// changedFlags returns the names of flags given on the command line.
func changedFlags(cmd *cobra.Command) map[string]bool {
	changed := map[string]bool{}
	if cmd == nil {
		return changed
	}
	cmd.Flags().Visit(func(f *pflag.Flag) {
		changed[f.Name] = true
	})
	return changed
}

func configPath(v reflect.Value) string {
	f := v.FieldByName("Config")
	if !f.IsValid() || f.Kind() != reflect.String {
		return ""
	}
	return f.String()
}

// readTOML parses path. A missing file is not an error and yields nil.
func readTOML(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	doc := map[string]any{}
	if err := toml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return doc, nil
}

func applyTOML(v reflect.Value, doc map[string]any, skip map[string]bool) []error {
	var errs []error
	eachField(v, skip, func(sf reflect.StructField, field reflect.Value) {
		key := sf.Tag.Get("toml")
		if key == "" {
			return
		}
		value, ok := lookup(doc, key)
		if !ok {
			return
		}
		if err := assign(field, value); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", key, err))
		}
	})
	return errs
}

func applyEnv(v reflect.Value, skip map[string]bool) []error {
	var errs []error
	eachField(v, skip, func(sf reflect.StructField, field reflect.Value) {
		name := sf.Tag.Get("env")
		if name == "" {
			return
		}
		value := os.Getenv(EnvPrefix + name)
		if value == "" {
			return
		}
		if err := assign(field, value); err != nil {
			errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, name, err))
		}
	})
	return errs
}

// eachField calls fn for every settable field whose flag was not changed.
func eachField(v reflect.Value, skip map[string]bool, fn func(reflect.StructField, reflect.Value)) {
	t := v.Type()
	for i := range t.NumField() {
		sf := t.Field(i)
		if !sf.IsExported() || skip[fieldNameToFlag(sf.Name)] {
			continue
		}
		fn(sf, v.Field(i))
	}
}

// fieldNameToFlag converts a struct field name to the kebab-case flag name
// humacli registers for it. Runs of capitals are kept together:
// "LoggingLevel" -> "logging-level", "LoggingAPI" -> "logging-api",
// "HTTPPort" -> "http-port".
func fieldNameToFlag(name string) string {
	runes := []rune(name)
	var b strings.Builder
	for i, r := range runes {
		if i > 0 && unicode.IsUpper(r) {
			prevLower := !unicode.IsUpper(runes[i-1])
			nextLower := i+1 < len(runes) && unicode.IsLower(runes[i+1])
			if prevLower || nextLower {
				b.WriteByte('-')
			}
		}
		b.WriteRune(unicode.ToLower(r))
	}
	return b.String()
}

// lookup finds a dotted key such as "recording.work_dir" in a decoded document.
func lookup(doc map[string]any, key string) (any, bool) {
	parts := strings.Split(key, ".")
	current := doc
	for _, part := range parts[:len(parts)-1] {
		next, ok := current[part].(map[string]any)
		if !ok {
			return nil, false
		}
		current = next
	}
	value, ok := current[parts[len(parts)-1]]
	return value, ok
}

// assign stores value in field. Strings are parsed for non-string fields, so
// the same rules apply to TOML and to the environment. Bare TOML integers
// given for a duration are seconds.
func assign(field reflect.Value, value any) error {
	if !field.CanSet() {
		return nil
	}
	if s, ok := value.(string); ok && field.Kind() != reflect.String {
		return assignString(field, s)
	}

	if field.Type() == durationType {
		n, ok := value.(int64)
		if !ok {
			return fmt.Errorf("want duration, got %T", value)
		}
		field.SetInt(n * int64(time.Second))
		return nil
	}

	switch field.Kind() {
	case reflect.String:
		s, ok := value.(string)
		if !ok {
			return fmt.Errorf("want string, got %T", value)
		}
		field.SetString(s)
	case reflect.Bool:
		b, ok := value.(bool)
		if !ok {
			return fmt.Errorf("want bool, got %T", value)
		}
		field.SetBool(b)
	case reflect.Int, reflect.Int32, reflect.Int64:
		n, ok := value.(int64)
		if !ok {
			return fmt.Errorf("want integer, got %T", value)
		}
		if field.OverflowInt(n) {
			return fmt.Errorf("%d out of range", n)
		}
		field.SetInt(n)
	case reflect.Float64:
		switch n := value.(type) {
		case float64:
			field.SetFloat(n)
		case int64:
			field.SetFloat(float64(n))
		default:
			return fmt.Errorf("want number, got %T", value)
		}
	case reflect.Slice:
		items, ok := value.([]any)
		if !ok || field.Type().Elem().Kind() != reflect.String {
			return fmt.Errorf("want list of strings, got %T", value)
		}
		out := make([]string, 0, len(items))
		for _, item := range items {
			s, ok := item.(string)
			if !ok {
				return fmt.Errorf("list item %v is not a string", item)
			}
			out = append(out, s)
		}
		field.Set(reflect.ValueOf(out))
	default:
		return fmt.Errorf("unsupported field type %s", field.Type())
	}
	return nil
}

func assignString(field reflect.Value, s string) error {
	if field.Type() == durationType {
		d, err := time.ParseDuration(s)
		if err != nil {
			return err
		}
		field.SetInt(int64(d))
		return nil
	}

	switch field.Kind() {
	case reflect.Bool:
		b, err := strconv.ParseBool(s)
		if err != nil {
			return err
		}
		field.SetBool(b)
	case reflect.Int, reflect.Int32, reflect.Int64:
		n, err := strconv.ParseInt(s, 10, field.Type().Bits())
		if err != nil {
			return err
		}
		field.SetInt(n)
	case reflect.Float64:
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return err
		}
		field.SetFloat(f)
	case reflect.Slice:
		if field.Type().Elem().Kind() != reflect.String {
			return fmt.Errorf("unsupported field type %s", field.Type())
		}
		parts := strings.Split(s, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		field.Set(reflect.ValueOf(parts))
	default:
		return fmt.Errorf("unsupported field type %s", field.Type())
	}
	return nil
}

// LoadLoggingConfig reads the [logging] table of configPath. Defaults are
// returned when the file is missing or malformed.
func LoadLoggingConfig(configPath string) logging.Config {
	cfg, err := LoadLoggingConfigE(configPath)
	if err != nil {
		return defaultLoggingConfig()
	}
	return cfg
}

// LoadLoggingConfigE is LoadLoggingConfig for the config watcher: a missing or
// malformed file is reported instead of silently falling back to defaults.
//
// Module levels come from [logging.modules] or from any other string key
// directly under [logging], e.g. recorder = "debug".
func LoadLoggingConfigE(configPath string) (logging.Config, error) {
	cfg := defaultLoggingConfig()
	if configPath == "" {
		return cfg, errors.New("no config file")
	}
	data, err := os.ReadFile(configPath)
	if err != nil {
		return logging.Config{}, fmt.Errorf("read config: %w", err)
	}
	var doc struct {
		Logging map[string]any `toml:"logging"`
	}
	if err := toml.Unmarshal(data, &doc); err != nil {
		return logging.Config{}, fmt.Errorf("parse config: %w", err)
	}

	for key, value := range doc.Logging {
		switch v := value.(type) {
		case string:
			switch key {
			case "level":
				cfg.Level = v
			case "format":
				cfg.Format = v
			default:
				cfg.Modules[key] = v
			}
		case map[string]any:
			if key != "modules" {
				continue
			}
			for module, level := range v {
				if s, ok := level.(string); ok {
					cfg.Modules[module] = s
				}
			}
		}
	}
	return cfg, nil
}

func defaultLoggingConfig() logging.Config {
	return logging.Config{Level: "info", Format: "text", Modules: map[string]string{}}
}

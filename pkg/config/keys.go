package config

import (
	"fmt"
	"reflect"
	"sort"
	"sync"
)

var sensitiveType = reflect.TypeOf(SensitiveString(""))

// Key is one leaf of Config, addressed by its dotted koanf path.
type Key struct {
	Path   string
	EnvVar string
	// Sensitive keys hold a SensitiveString and are redacted by Value.
	Sensitive bool
	index     []int
}

// Value formats the key's current value in cfg.
func (k Key) Value(cfg *Config) string {
	v := reflect.ValueOf(cfg).Elem().FieldByIndex(k.index)
	if k.Sensitive {
		return v.Interface().(SensitiveString).String()
	}
	if s, ok := v.Interface().(fmt.Stringer); ok {
		return s.String()
	}
	return fmt.Sprint(v.Interface())
}

var keys = sync.OnceValue(func() []Key {
	var out []Key
	collectKeys(reflect.TypeOf(Config{}), "", nil, &out)
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out
})

// Keys lists every configuration key sorted by path.
func Keys() []Key {
	return keys()
}

func LookupKey(path string) (Key, bool) {
	for _, k := range keys() {
		if k.Path == path {
			return k, true
		}
	}
	return Key{}, false
}

// collectKeys descends into section structs. Durations are leaves.
func collectKeys(t reflect.Type, prefix string, index []int, out *[]Key) {
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		name := field.Tag.Get("koanf")
		if name == "" || !field.IsExported() {
			continue
		}
		path := name
		if prefix != "" {
			path = prefix + "." + name
		}
		idx := append(append([]int(nil), index...), i)
		if field.Type.Kind() == reflect.Struct {
			collectKeys(field.Type, path, idx, out)
			continue
		}
		*out = append(*out, Key{
			Path:      path,
			EnvVar:    field.Tag.Get("env"),
			Sensitive: field.Type == sensitiveType,
			index:     idx,
		})
	}
}

// envPaths maps declared environment variables to key paths.
func envPaths() map[string]string {
	out := make(map[string]string)
	for _, k := range keys() {
		if k.EnvVar != "" {
			out[k.EnvVar] = k.Path
		}
	}
	return out
}

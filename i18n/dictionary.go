package i18n

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Dictionary is a nested translation table. Values are strings (leaves) or
// nested Dictionary values (namespaces).
type Dictionary map[string]any

// Lookup resolves a dot-separated key path. It reports false as soon as a
// non-namespace is met before the path ends, or when the final value is not a string.
func (d Dictionary) Lookup(key string) (string, bool) {
	var current any = d
	for _, part := range strings.Split(key, ".") {
		ns, ok := asDictionary(current)
		if !ok {
			return "", false
		}
		current, ok = ns[part]
		if !ok {
			return "", false
		}
	}
	s, ok := current.(string)
	return s, ok
}

// Merge returns a new Dictionary with other layered over d. Namespaces present in
// both are merged recursively; anything else in other wins.
func (d Dictionary) Merge(other Dictionary) Dictionary {
	out := make(Dictionary, len(d)+len(other))
	for k, v := range d {
		out[k] = v
	}
	for k, v := range other {
		left, lok := asDictionary(out[k])
		right, rok := asDictionary(v)
		if lok && rok {
			out[k] = left.Merge(right)
			continue
		}
		out[k] = v
	}
	return out
}

// Len counts the leaf translations.
func (d Dictionary) Len() int {
	n := 0
	for _, v := range d {
		if ns, ok := asDictionary(v); ok {
			n += ns.Len()
		} else if _, ok := v.(string); ok {
			n++
		}
	}
	return n
}

func asDictionary(v any) (Dictionary, bool) {
	switch m := v.(type) {
	case Dictionary:
		return m, true
	case map[string]any:
		return Dictionary(m), true
	}
	return nil, false
}

// ParseDictionary decodes a YAML or JSON translation bundle.
func ParseDictionary(data []byte) (Dictionary, error) {
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse translation bundle: %w", err)
	}
	if raw == nil {
		return Dictionary{}, nil
	}
	return normalize(raw), nil
}

func normalize(m map[string]any) Dictionary {
	out := make(Dictionary, len(m))
	for k, v := range m {
		if nested, ok := v.(map[string]any); ok {
			out[k] = normalize(nested)
			continue
		}
		out[k] = v
	}
	return out
}

// LoadDir reads every <lang>.yaml, <lang>.yml and <lang>.json file in dir.
// Files for the same language are merged in directory order.
func LoadDir(dir string) (map[Language]Dictionary, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read translations dir: %w", err)
	}

	out := make(map[Language]Dictionary)
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := filepath.Ext(e.Name())
		switch ext {
		case ".yaml", ".yml", ".json":
		default:
			continue
		}

		data, err := os.ReadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", e.Name(), err)
		}
		dict, err := ParseDictionary(data)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", e.Name(), err)
		}

		lang := Language(strings.TrimSuffix(e.Name(), ext))
		out[lang] = out[lang].Merge(dict)
	}
	return out, nil
}

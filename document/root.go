// Package document models the presentation root that preference services decorate:
// the class list, CSS custom properties, language attribute and meta tags a client
// applies to its top-level element.
package document

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// MetaThemeColor is the meta tag name browsers use to tint their chrome.
const MetaThemeColor = "theme-color"

// Root is a concurrency-safe model of a document root element.
// The zero value is not usable; create one with NewRoot.
type Root struct {
	mu         sync.RWMutex
	classes    map[string]struct{}
	properties map[string]string
	meta       map[string]string
	lang       string
}

// State is a point-in-time copy of a Root.
type State struct {
	Classes    []string          `json:"classes"`
	Properties map[string]string `json:"properties"`
	Meta       map[string]string `json:"meta"`
	Lang       string            `json:"lang"`
}

func NewRoot() *Root {
	return &Root{
		classes:    make(map[string]struct{}),
		properties: make(map[string]string),
		meta:       make(map[string]string),
	}
}

func (r *Root) SetClass(class string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.classes[class] = struct{}{}
}

// RemoveClasses removes every named class that is present.
func (r *Root) RemoveClasses(classes ...string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range classes {
		delete(r.classes, c)
	}
}

// ReplaceClass removes every class in group and then adds class, atomically.
// Observers never see two members of the group at once.
func (r *Root) ReplaceClass(group []string, class string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range group {
		delete(r.classes, c)
	}
	if class != "" {
		r.classes[class] = struct{}{}
	}
}

func (r *Root) HasClass(class string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.classes[class]
	return ok
}

// Classes returns the class list sorted.
func (r *Root) Classes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return sortedKeys(r.classes)
}

// SetProperty sets a CSS custom property such as "--color-primary".
func (r *Root) SetProperty(name, value string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.properties[name] = value
}

func (r *Root) RemoveProperty(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.properties, name)
}

func (r *Root) Property(name string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.properties[name]
	return v, ok
}

func (r *Root) SetLang(lang string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lang = lang
}

func (r *Root) Lang() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.lang
}

func (r *Root) SetMeta(name, content string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.meta[name] = content
}

func (r *Root) Meta(name string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.meta[name]
	return v, ok
}

// State returns a copy of the root.
func (r *Root) State() State {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s := State{
		Classes:    sortedKeys(r.classes),
		Properties: make(map[string]string, len(r.properties)),
		Meta:       make(map[string]string, len(r.meta)),
		Lang:       r.lang,
	}
	for k, v := range r.properties {
		s.Properties[k] = v
	}
	for k, v := range r.meta {
		s.Meta[k] = v
	}
	return s
}

// CSS renders the custom properties as a :root rule, sorted by name.
func (r *Root) CSS() string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if len(r.properties) == 0 {
		return ":root {}\n"
	}

	names := make([]string, 0, len(r.properties))
	for name := range r.properties {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	b.WriteString(":root {\n")
	for _, name := range names {
		fmt.Fprintf(&b, "  %s: %s;\n", name, r.properties[name])
	}
	b.WriteString("}\n")
	return b.String()
}

// Attributes renders the root as element attributes: class, lang and an inline
// style carrying the custom properties. Empty attributes are omitted.
func (r *Root) Attributes() map[string]string {
	s := r.State()
	attrs := make(map[string]string, 3)
	if len(s.Classes) > 0 {
		attrs["class"] = strings.Join(s.Classes, " ")
	}
	if s.Lang != "" {
		attrs["lang"] = s.Lang
	}
	if len(s.Properties) > 0 {
		names := make([]string, 0, len(s.Properties))
		for name := range s.Properties {
			names = append(names, name)
		}
		sort.Strings(names)
		decls := make([]string, 0, len(names))
		for _, name := range names {
			decls = append(decls, name+": "+s.Properties[name])
		}
		attrs["style"] = strings.Join(decls, "; ")
	}
	return attrs
}

func sortedKeys(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

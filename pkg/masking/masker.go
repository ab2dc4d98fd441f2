// Package masking scrubs secret-looking values out of worker results
// before they reach model prompts, logs, or the run journal. Rules come
// in named groups; a service opts in through its catalog or registry
// metadata.
package masking

// Masker applies a resolved set of redaction rules. The zero value and
// nil are inert.
type Masker struct {
	rules []*pattern
}

// ForGroups resolves group and pattern names into a ready Masker.
// Unknown names are skipped. The result is inert when nothing resolves.
func ForGroups(names ...string) *Masker {
	seen := make(map[string]bool)
	m := &Masker{}
	add := func(name string) {
		if seen[name] {
			return
		}
		seen[name] = true
		if p, ok := patterns[name]; ok {
			m.rules = append(m.rules, p)
		}
	}

	for _, name := range names {
		if members, ok := patternGroups[name]; ok {
			for _, member := range members {
				add(member)
			}
			continue
		}
		add(name)
	}
	return m
}

// Empty reports whether the masker has no rules.
func (m *Masker) Empty() bool {
	return m == nil || len(m.rules) == 0
}

// MaskString applies every text rule to s.
func (m *Masker) MaskString(s string) string {
	if m.Empty() || s == "" {
		return s
	}
	for _, p := range m.rules {
		s = p.regex.ReplaceAllString(s, p.replacement)
	}
	return s
}

// MaskValue walks a decoded JSON payload and masks every string in it.
// Map entries whose key names a secret family are replaced outright when
// the value has that family's shape; everything else goes through the
// text rules.
func (m *Masker) MaskValue(v any) any {
	if m.Empty() {
		return v
	}
	switch val := v.(type) {
	case string:
		return m.MaskString(val)
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			if token, ok := m.maskedField(k, item); ok {
				out[k] = token
				continue
			}
			out[k] = m.MaskValue(item)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = m.MaskValue(item)
		}
		return out
	default:
		return v
	}
}

// maskedField reports whether key/value match one of the map-key rules.
func (m *Masker) maskedField(key string, value any) (string, bool) {
	s, ok := value.(string)
	if !ok {
		return "", false
	}
	for _, p := range m.rules {
		if p.keyRegex == nil {
			continue
		}
		if p.keyRegex.MatchString(key) && p.valueRegex.MatchString(s) {
			return p.token, true
		}
	}
	return "", false
}

package config

import (
	"bytes"
	"os"
	"strings"
	"text/template"
)

// ExpandEnv substitutes environment variables in catalog YAML using the
// {{.VAR_NAME}} template syntax. Plain $ stays untouched, so passwords and
// regex-looking values survive expansion literally.
//
// Missing variables expand to the empty string; validation catches required
// fields that end up empty. Malformed template syntax passes the content
// through unchanged and leaves the failure to the YAML parser, whose error
// points at the actual file.
func ExpandEnv(data []byte) []byte {
	tmpl, err := template.New("catalog").Option("missingkey=zero").Parse(string(data))
	if err != nil {
		return data
	}

	env := make(map[string]string)
	for _, kv := range os.Environ() {
		if key, value, ok := strings.Cut(kv, "="); ok && key != "" {
			env[key] = value
		}
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, env); err != nil {
		return data
	}
	return buf.Bytes()
}

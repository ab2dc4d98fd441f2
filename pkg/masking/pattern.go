package masking

import "regexp"

// pattern is one compiled redaction rule. The text rule catches secrets
// embedded in free text; key rules catch them in decoded JSON maps, where
// the key and value arrive separately and the text rule cannot see both.
type pattern struct {
	name        string
	regex       *regexp.Regexp
	replacement string

	// Map-key form. keyRegex matches the map key, valueRegex the string
	// value that looks like this family's secret. Nil for families that
	// only appear inline in text.
	keyRegex   *regexp.Regexp
	valueRegex *regexp.Regexp
	token      string
}

var patterns = map[string]*pattern{
	"api_key": {
		name:        "api_key",
		regex:       regexp.MustCompile(`(?i)(?:api[_-]?key|apikey|key)["']?\s*[:=]\s*["']?([A-Za-z0-9_\-]{20,})["']?`),
		replacement: `"api_key": "__MASKED_API_KEY__"`,
		keyRegex:    regexp.MustCompile(`(?i)^(?:api[_-]?key|apikey|key)$`),
		valueRegex:  regexp.MustCompile(`^[A-Za-z0-9_\-]{20,}$`),
		token:       "__MASKED_API_KEY__",
	},
	"password": {
		name:        "password",
		regex:       regexp.MustCompile(`(?i)(?:password|pwd|pass)["']?\s*[:=]\s*["']?([^"'\s\n]{6,})["']?`),
		replacement: `"password": "__MASKED_PASSWORD__"`,
		keyRegex:    regexp.MustCompile(`(?i)^(?:password|pwd|pass)$`),
		valueRegex:  regexp.MustCompile(`^[^"'\s\n]{6,}$`),
		token:       "__MASKED_PASSWORD__",
	},
	"token": {
		name:        "token",
		regex:       regexp.MustCompile(`(?i)(?:token|bearer|jwt)["']?\s*[:=]\s*["']?([A-Za-z0-9_\-.]{20,})["']?`),
		replacement: `"token": "__MASKED_TOKEN__"`,
		keyRegex:    regexp.MustCompile(`(?i)^(?:token|bearer|jwt)$`),
		valueRegex:  regexp.MustCompile(`^[A-Za-z0-9_\-.]{20,}$`),
		token:       "__MASKED_TOKEN__",
	},
	"private_key": {
		name:        "private_key",
		regex:       regexp.MustCompile(`(?i)(?:private[_-]?key)["']?\s*[:=]\s*["']?([A-Za-z0-9_\-.]{20,})["']?`),
		replacement: `"private_key": "__MASKED_PRIVATE_KEY__"`,
		keyRegex:    regexp.MustCompile(`(?i)^private[_-]?key$`),
		valueRegex:  regexp.MustCompile(`^[A-Za-z0-9_\-.]{20,}$`),
		token:       "__MASKED_PRIVATE_KEY__",
	},
	"secret_key": {
		name:        "secret_key",
		regex:       regexp.MustCompile(`(?i)(?:secret[_-]?key)["']?\s*[:=]\s*["']?([A-Za-z0-9_\-.]{20,})["']?`),
		replacement: `"secret_key": "__MASKED_SECRET_KEY__"`,
		keyRegex:    regexp.MustCompile(`(?i)^secret[_-]?key$`),
		valueRegex:  regexp.MustCompile(`^[A-Za-z0-9_\-.]{20,}$`),
		token:       "__MASKED_SECRET_KEY__",
	},
	"aws_access_key": {
		name:        "aws_access_key",
		regex:       regexp.MustCompile(`(?i)(?:aws[_-]?access[_-]?key[_-]?id)["']?\s*[:=]\s*["']?(AKIA[A-Z0-9]{16})["']?`),
		replacement: `"aws_access_key_id": "__MASKED_AWS_KEY__"`,
		keyRegex:    regexp.MustCompile(`(?i)^aws[_-]?access[_-]?key[_-]?id$`),
		valueRegex:  regexp.MustCompile(`^AKIA[A-Z0-9]{16}$`),
		token:       "__MASKED_AWS_KEY__",
	},
	"aws_secret_key": {
		name:        "aws_secret_key",
		regex:       regexp.MustCompile(`(?i)(?:aws[_-]?secret[_-]?access[_-]?key)["']?\s*[:=]\s*["']?([A-Za-z0-9/+=]{40})["']?`),
		replacement: `"aws_secret_access_key": "__MASKED_AWS_SECRET__"`,
		keyRegex:    regexp.MustCompile(`(?i)^aws[_-]?secret[_-]?access[_-]?key$`),
		valueRegex:  regexp.MustCompile(`^[A-Za-z0-9/+=]{40}$`),
		token:       "__MASKED_AWS_SECRET__",
	},
	"certificate": {
		name:        "certificate",
		regex:       regexp.MustCompile(`(?s)-----BEGIN [A-Z ]+-----.*?-----END [A-Z ]+-----`),
		replacement: `__MASKED_CERTIFICATE__`,
	},
	"ssh_key": {
		name:        "ssh_key",
		regex:       regexp.MustCompile(`ssh-(?:rsa|dss|ed25519|ecdsa)\s+[A-Za-z0-9+/=]+`),
		replacement: `__MASKED_SSH_KEY__`,
	},
	"email": {
		name:        "email",
		regex:       regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9]+(?:[.-][A-Za-z0-9]+)*\.[A-Za-z]{2,63}\b`),
		replacement: `__MASKED_EMAIL__`,
	},
	"github_token": {
		name:        "github_token",
		regex:       regexp.MustCompile(`(?i)(?:github[_-]?token|gh[ps]_[A-Za-z0-9_]{36,255})`),
		replacement: `__MASKED_GITHUB_TOKEN__`,
	},
	"slack_token": {
		name:        "slack_token",
		regex:       regexp.MustCompile(`(?i)xox[baprs]-[A-Za-z0-9-]{10,72}`),
		replacement: `__MASKED_SLACK_TOKEN__`,
	},
}

// patternGroups maps group names to their member patterns.
var patternGroups = map[string][]string{
	"basic":    {"api_key", "password"},
	"secrets":  {"api_key", "password", "token", "private_key", "secret_key"},
	"security": {"api_key", "password", "token", "certificate", "email", "ssh_key"},
	"cloud":    {"aws_access_key", "aws_secret_key", "api_key", "token"},
	"all": {
		"api_key", "password", "token", "private_key", "secret_key",
		"aws_access_key", "aws_secret_key", "certificate", "ssh_key",
		"email", "github_token", "slack_token",
	},
}

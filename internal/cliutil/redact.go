package cliutil

import (
	"regexp"
	"strings"
)

const redactedPlaceholder = "[redacted]"

var (
	templateVarPattern = regexp.MustCompile(`\$\{[^}]+\}`)
	secretFlagPattern  = regexp.MustCompile(`(?i)(--?(?:` + strings.Join(secretFlagNames(), "|") + `))((?:=|\s+)["']?)([^"'\s]+)(["']?)`)
	secretEnvPattern   = regexp.MustCompile(`(?i)\b(\w*(?:PASSWORD|SECRET|TOKEN|API_KEY)\w*)(=)(\S+)`)
)

func secretFlagNames() []string {
	names := []string{
		"password",
		"passwd",
		"secret",
		"token",
		"api-key",
		"apikey",
		"access-key",
		"private-key",
	}
	escaped := make([]string, len(names))
	for i, name := range names {
		escaped[i] = regexp.QuoteMeta(name)
	}
	return escaped
}

// RedactCommandLine masks credential-looking material in a command line before
// it reaches logs or run records: ${VAR} template references, values passed to
// well-known secret flags, and VAR=value pairs whose name smells like a
// credential.
func RedactCommandLine(line string) string {
	if line == "" {
		return line
	}
	redacted := templateVarPattern.ReplaceAllStringFunc(line, func(string) string {
		return "${" + redactedPlaceholder + "}"
	})
	redacted = secretFlagPattern.ReplaceAllString(redacted, "$1$2"+redactedPlaceholder+"$4")
	return secretEnvPattern.ReplaceAllString(redacted, "$1$2"+redactedPlaceholder)
}

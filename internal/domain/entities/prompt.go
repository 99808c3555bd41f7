package entities

import (
	"regexp"
	"strings"
)

var (
	promptRegex = regexp.MustCompile(`(?:^|\n)([A-Za-z0-9][A-Za-z0-9._\-]*(?:\([A-Za-z0-9._\-]+\))?[>#])[ \t]*$`)
	pagerRegex  = regexp.MustCompile(`(?i)[ \t]*-+ ?more ?-+[ \t]*$`)
	pagersRegex = regexp.MustCompile(`(?i)[ \t]*-- ?more ?--[ \t]*`)
)

// MatchPrompt reports whether text ends with a CLI prompt such as
// "SW1>", "SW1#" or "SW1(config-vlan)#" and returns that prompt.
func MatchPrompt(text string) (string, bool) {
	m := promptRegex.FindStringSubmatch(NormalizeOutput(text))
	if m == nil {
		return "", false
	}
	return m[1], true
}

// IsPrivilegedPrompt reports whether the prompt belongs to the privileged level
func IsPrivilegedPrompt(prompt string) bool {
	return strings.HasSuffix(prompt, "#")
}

// IsConfigPrompt reports whether the prompt belongs to a configuration mode
func IsConfigPrompt(prompt string) bool {
	return strings.Contains(prompt, "(config")
}

// HasPager reports whether text ends with a --More-- pagination marker
func HasPager(text string) bool {
	return pagerRegex.MatchString(text)
}

// RemovePagers removes every --More-- marker left in captured output
func RemovePagers(text string) string {
	return pagersRegex.ReplaceAllString(text, "")
}

// NormalizeOutput drops carriage returns and the backspace runs some
// devices use to erase a pager marker
func NormalizeOutput(text string) string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "")
	if strings.IndexByte(text, '\b') >= 0 {
		var b strings.Builder
		for _, r := range text {
			if r == '\b' {
				s := b.String()
				if len(s) > 0 {
					b.Reset()
					b.WriteString(s[:len(s)-1])
				}
				continue
			}
			b.WriteRune(r)
		}
		text = b.String()
	}
	return text
}

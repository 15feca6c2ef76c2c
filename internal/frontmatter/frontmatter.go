// Package frontmatter parses and stringifies the YAML-header-plus-Markdown-body
// files used throughout the agents directory: personas, workflows, messages,
// and sessions all share this shape.
package frontmatter

import (
	"bytes"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

const delimiter = "---"

// Parse splits raw file content into a YAML header and a Markdown body.
// A file with no header (no leading "---" line) is treated as body-only;
// header is left as its zero value.
func Parse(raw []byte, header interface{}) (body string, err error) {
	content := string(raw)

	if !strings.HasPrefix(content, delimiter) {
		return content, nil
	}

	// Content begins with "---\n"; find the closing delimiter line.
	rest := content[len(delimiter):]
	rest = strings.TrimPrefix(rest, "\r\n")
	rest = strings.TrimPrefix(rest, "\n")

	closeIdx := findClosingDelimiter(rest)
	if closeIdx < 0 {
		// No closing delimiter: treat the whole thing as body.
		return content, nil
	}

	headerYAML := rest[:closeIdx]
	body = rest[closeIdx:]
	body = strings.TrimPrefix(body, delimiter)
	body = strings.TrimPrefix(body, "\r\n")
	body = strings.TrimPrefix(body, "\n")

	if strings.TrimSpace(headerYAML) != "" {
		if err := yaml.Unmarshal([]byte(headerYAML), header); err != nil {
			return "", fmt.Errorf("frontmatter: parse header: %w", err)
		}
	}

	return body, nil
}

// findClosingDelimiter returns the index within s of the line consisting
// exactly of "---", or -1 if none is found. s is the content following the
// opening delimiter line.
func findClosingDelimiter(s string) int {
	for start := 0; start < len(s); {
		line, _, found := strings.Cut(s[start:], "\n")
		if strings.TrimSuffix(line, "\r") == delimiter {
			return start
		}
		if !found {
			return -1
		}
		start += len(line) + 1
	}
	return -1
}

// Stringify renders a header value and a body back into frontmatter form.
// Round-trips with Parse for any header and any body not containing the
// "\n---\n" sequence.
func Stringify(header interface{}, body string) ([]byte, error) {
	var buf bytes.Buffer

	headerYAML, err := yaml.Marshal(header)
	if err != nil {
		return nil, fmt.Errorf("frontmatter: marshal header: %w", err)
	}

	buf.WriteString(delimiter)
	buf.WriteByte('\n')
	buf.Write(headerYAML)
	buf.WriteString(delimiter)
	buf.WriteByte('\n')
	buf.WriteString(body)

	return buf.Bytes(), nil
}

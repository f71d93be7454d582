// Package parser extracts frontmatter, properties, and tags from Markdown
// content.
package parser

import (
	"bytes"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

var tagRe = regexp.MustCompile(`(?:^|\s)#([A-Za-z][A-Za-z0-9_/-]*)`)

// Result holds the output of parsing a Markdown file.
type Result struct {
	Frontmatter map[string]interface{}
	Body        string
	Tags        []string
}

// KeyValue is one flattened frontmatter entry. Multi-valued frontmatter
// lists flatten to multiple entries sharing a name.
type KeyValue struct {
	Name  string
	Value string
}

// Parse extracts frontmatter, body, and tags from raw Markdown bytes.
func Parse(data []byte) (*Result, error) {
	fm, body, err := splitFrontmatter(data)
	if err != nil {
		return nil, err
	}
	return &Result{
		Frontmatter: fm,
		Body:        body,
		Tags:        extractTags(body, fm),
	}, nil
}

// Properties flattens the frontmatter into name/value pairs. Nested maps
// are skipped; lists become one entry per element. Tags are reported via
// Tags, not here, so the caller decides how to store them.
func (r *Result) Properties() []KeyValue {
	if r.Frontmatter == nil {
		return nil
	}
	var out []KeyValue
	for name, raw := range r.Frontmatter {
		if strings.EqualFold(name, "tags") {
			continue
		}
		switch v := raw.(type) {
		case []interface{}:
			for _, item := range v {
				if s, ok := scalarString(item); ok {
					out = append(out, KeyValue{Name: name, Value: s})
				}
			}
		case map[string]interface{}:
			// Nested structures have no flat representation.
		default:
			if s, ok := scalarString(raw); ok {
				out = append(out, KeyValue{Name: name, Value: s})
			}
		}
	}
	return out
}

func scalarString(v interface{}) (string, bool) {
	switch s := v.(type) {
	case string:
		return s, true
	case int:
		return strconv.Itoa(s), true
	case int64:
		return strconv.FormatInt(s, 10), true
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64), true
	case bool:
		return strconv.FormatBool(s), true
	case nil:
		return "", false
	case map[string]interface{}:
		return "", false
	default:
		return fmt.Sprintf("%v", s), true
	}
}

// splitFrontmatter separates YAML frontmatter (between leading --- delimiters)
// from the Markdown body. If no frontmatter is found the entire content is body.
func splitFrontmatter(data []byte) (map[string]interface{}, string, error) {
	const delim = "---"
	trimmed := bytes.TrimLeft(data, "\n\r")

	if !bytes.HasPrefix(trimmed, []byte(delim)) {
		return nil, string(data), nil
	}

	rest := trimmed[len(delim):]
	idx := bytes.Index(rest, []byte("\n"+delim))
	if idx < 0 {
		// No closing delimiter — treat everything as body.
		return nil, string(data), nil
	}

	yamlBlock := rest[:idx]
	afterDelim := rest[idx+1+len(delim):]
	body := strings.TrimLeft(string(afterDelim), "\n\r")

	var fm map[string]interface{}
	if err := yaml.Unmarshal(yamlBlock, &fm); err != nil {
		// Invalid YAML — index the body, drop the frontmatter.
		return nil, string(data), nil
	}

	return fm, body, nil
}

// extractTags collects #tags from body and from the frontmatter "tags"
// field, deduplicated in encounter order.
func extractTags(body string, fm map[string]interface{}) []string {
	seen := make(map[string]struct{})
	var out []string

	add := func(tag string) {
		tag = strings.TrimSpace(strings.TrimPrefix(tag, "#"))
		if tag == "" {
			return
		}
		if _, dup := seen[tag]; dup {
			return
		}
		seen[tag] = struct{}{}
		out = append(out, tag)
	}

	if fm != nil {
		if raw, ok := fm["tags"]; ok {
			switch v := raw.(type) {
			case []interface{}:
				for _, item := range v {
					if s, ok := item.(string); ok {
						add(s)
					}
				}
			case string:
				add(v)
			}
		}
	}

	for _, m := range tagRe.FindAllStringSubmatch(body, -1) {
		add(m[1])
	}

	return out
}

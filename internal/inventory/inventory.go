package inventory

import (
	"regexp"
	"sort"
	"strings"

	"iacrag/internal/domain"
)

var (
	resourceRe = regexp.MustCompile(`resource\s+"([^"]+)"\s+"([^"]+)"`)
	variableRe = regexp.MustCompile(`variable\s+"([^"]+)"`)
	outputRe   = regexp.MustCompile(`output\s+"([^"]+)"`)
	providerRe = regexp.MustCompile(`provider\s+"([^"]+)"`)

	resourceHeaderRe = regexp.MustCompile(`resource\s+"([^"]+)"\s+"([^"]+)"\s*\{`)
	propertyRe       = regexp.MustCompile(`(?m)^\s*([A-Za-z_][A-Za-z0-9_-]*)\s*=`)
	heredocRe        = regexp.MustCompile(`^<<-?([A-Za-z_][A-Za-z0-9_]*)[ \t]*\r?\n`)
)

// Summary is an overview of the Terraform objects declared in a corpus.
type Summary struct {
	TotalFiles int
	// ResourceTypes maps a resource type to the names declared for it.
	ResourceTypes map[string][]string
	Variables     []string
	Outputs       []string
	Providers     []string
}

// Resource describes one declared resource block.
type Resource struct {
	Type       string
	Name       string
	SourceFile string
	Properties []string
}

// Key returns the Terraform address of the resource.
func (r Resource) Key() string { return r.Type + "." + r.Name }

// Summarize lists resource types, variables, outputs and providers across
// docs. Names are deduplicated and sorted.
func Summarize(docs []domain.Document) Summary {
	s := Summary{TotalFiles: len(docs), ResourceTypes: map[string][]string{}}
	var vars, outs, provs []string
	for _, d := range docs {
		content := mask(d.Content)
		for _, m := range resourceRe.FindAllStringSubmatch(content, -1) {
			s.ResourceTypes[m[1]] = append(s.ResourceTypes[m[1]], m[2])
		}
		vars = append(vars, submatches(variableRe, content)...)
		outs = append(outs, submatches(outputRe, content)...)
		provs = append(provs, submatches(providerRe, content)...)
	}
	for t, names := range s.ResourceTypes {
		s.ResourceTypes[t] = uniqueSorted(names)
	}
	s.Variables = uniqueSorted(vars)
	s.Outputs = uniqueSorted(outs)
	s.Providers = uniqueSorted(provs)
	return s
}

// Types returns the resource types in s, sorted.
func (s Summary) Types() []string {
	out := make([]string, 0, len(s.ResourceTypes))
	for t := range s.ResourceTypes {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// Details returns every resource block, optionally restricted to one type,
// with the attribute names set at the top level of its body. Resources are
// ordered by address; a resource split across files merges its properties.
// Comments and heredoc bodies are not scanned.
func Details(docs []domain.Document, resourceType string) []Resource {
	byKey := map[string]*Resource{}
	for _, d := range docs {
		content := mask(d.Content)
		for _, loc := range resourceHeaderRe.FindAllStringSubmatchIndex(content, -1) {
			typ := content[loc[2]:loc[3]]
			name := content[loc[4]:loc[5]]
			if resourceType != "" && typ != resourceType {
				continue
			}
			body := blockBody(content, loc[1]-1)
			key := typ + "." + name
			r, ok := byKey[key]
			if !ok {
				r = &Resource{Type: typ, Name: name, SourceFile: d.Source}
				byKey[key] = r
			}
			r.Properties = append(r.Properties, submatches(propertyRe, topLevel(body))...)
		}
	}

	out := make([]Resource, 0, len(byKey))
	for _, r := range byKey {
		r.Properties = uniqueInOrder(r.Properties)
		out = append(out, *r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key() < out[j].Key() })
	return out
}

// blockBody returns the text between the brace at open and its match,
// ignoring braces inside double-quoted strings. An unterminated block runs
// to the end of content.
func blockBody(content string, open int) string {
	depth := 0
	inString := false
	for i := open; i < len(content); i++ {
		c := content[i]
		switch {
		case inString:
			if c == '\\' {
				i++
			} else if c == '"' {
				inString = false
			}
		case c == '"':
			inString = true
		case c == '{':
			depth++
		case c == '}':
			depth--
			if depth == 0 {
				return content[open+1 : i]
			}
		}
	}
	return content[open+1:]
}

// topLevel blanks out nested blocks of body so only its own attributes remain.
func topLevel(body string) string {
	out := []byte(body)
	depth := 0
	inString := false
	for i := 0; i < len(out); i++ {
		c := out[i]
		switch {
		case inString:
			if c == '\\' {
				i++
			} else if c == '"' {
				inString = false
			}
		case c == '"':
			inString = true
		case c == '{':
			depth++
		case c == '}':
			depth--
			continue
		}
		if depth > 0 && c != '\n' {
			out[i] = ' '
		}
	}
	return string(out)
}

// mask blanks comments and heredoc bodies, keeping byte offsets and line
// breaks, so the scanners above only see declarations.
func mask(content string) string {
	out := []byte(content)
	blank := func(from, to int) {
		for j := from; j < to; j++ {
			if out[j] != '\n' {
				out[j] = ' '
			}
		}
	}
	inString := false
	for i := 0; i < len(content); i++ {
		c := content[i]
		if inString {
			if c == '\\' {
				i++
			} else if c == '"' || c == '\n' {
				inString = false
			}
			continue
		}
		switch {
		case c == '"':
			inString = true
		case c == '#' || strings.HasPrefix(content[i:], "//"):
			end := lineEnd(content, i)
			blank(i, end)
			i = end
		case strings.HasPrefix(content[i:], "/*"):
			end := len(content)
			if j := strings.Index(content[i+2:], "*/"); j >= 0 {
				end = i + 2 + j + 2
			}
			blank(i, end)
			i = end - 1
		case strings.HasPrefix(content[i:], "<<"):
			m := heredocRe.FindStringSubmatch(content[i:])
			if m == nil {
				continue
			}
			start := i + len(m[0])
			end := len(content)
			for pos := start; pos < len(content); {
				next := lineEnd(content, pos)
				if strings.TrimSpace(content[pos:next]) == m[1] {
					end = next
					break
				}
				pos = next + 1
			}
			blank(start, end)
			i = end
		}
	}
	return string(out)
}

// lineEnd returns the index of the newline ending the line at i, or len(s).
func lineEnd(s string, i int) int {
	if j := strings.IndexByte(s[i:], '\n'); j >= 0 {
		return i + j
	}
	return len(s)
}

func submatches(re *regexp.Regexp, s string) []string {
	var out []string
	for _, m := range re.FindAllStringSubmatch(s, -1) {
		out = append(out, m[1])
	}
	return out
}

func uniqueSorted(in []string) []string {
	out := uniqueInOrder(in)
	sort.Strings(out)
	return out
}

func uniqueInOrder(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

package chunker

import (
	"path/filepath"
	"regexp"
	"strings"
	"unicode/utf8"

	"iacrag/internal/domain"
)

var (
	// blockHeaderRe matches a top-level HCL block opening at column 0.
	blockHeaderRe = regexp.MustCompile(`^(resource|data|variable|output|provider|module|locals|terraform|moved|import|check)(\s+"[^"]*")*\s*\{`)
	kindRe        = regexp.MustCompile(`^(resource|data|variable|output|provider|terraform|module|locals)\b`)
)

var kindNames = map[string]string{
	"resource":  "resource",
	"data":      "data_source",
	"variable":  "variable",
	"output":    "output",
	"provider":  "provider",
	"terraform": "terraform_config",
	"module":    "module",
	"locals":    "locals",
}

// KindGeneral is the kind of chunks that do not open a known block.
const KindGeneral = "general"

// IsHCL reports whether a document should be split on HCL block boundaries.
func IsHCL(document domain.Document) bool {
	if document.Metadata[domain.MetaFileType] == "terraform" {
		return true
	}
	switch strings.ToLower(filepath.Ext(document.Source)) {
	case ".tf", ".tfvars", ".hcl":
		return true
	}
	return false
}

// Classify names the kind of block a chunk starts with.
func Classify(text string) string {
	m := kindRe.FindStringSubmatch(strings.ToLower(strings.TrimSpace(text)))
	if m == nil {
		return KindGeneral
	}
	return kindNames[m[1]]
}

// boundaryOffsets returns rune offsets of lines that start a structural unit.
func boundaryOffsets(document domain.Document) []int {
	hcl := IsHCL(document)
	var out []int
	offset := 0
	prevBlank := true
	for _, line := range strings.Split(document.Content, "\n") {
		isBlank := strings.TrimSpace(line) == ""
		if hcl {
			if blockHeaderRe.MatchString(line) {
				out = append(out, offset)
			}
		} else if !isBlank && prevBlank {
			out = append(out, offset)
		}
		prevBlank = isBlank
		offset += utf8.RuneCountInString(line) + 1
	}
	return out
}

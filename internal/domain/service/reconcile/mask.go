package reconcile

import (
	"regexp"
	"strings"

	"appdeck/internal/domain/service/descriptor"
)

// placeholder replaces masked values. YAML text cannot contain NUL, so it
// never collides with descriptor content.
const placeholder = "\x00value\x00"

// region is one masked part of a descriptor.
type region struct {
	masked   string
	original string
}

// maskedText is a descriptor with every environment value replaced by the
// placeholder. regions are in source order.
type maskedText struct {
	text    string
	regions []region
}

// maskDocument masks environment values using the parsed node positions.
func maskDocument(doc *descriptor.Document) (maskedText, error) {
	spans, err := collectSpans(doc)
	if err != nil {
		return maskedText{}, err
	}
	src := doc.Source()

	var (
		b       strings.Builder
		regions []region
		last    int
	)
	for _, s := range spans {
		if s.maskStart < last {
			// same entry reached through a shared anchor
			continue
		}
		b.Write(src[last:s.maskStart])
		b.WriteString(s.maskText)
		regions = append(regions, region{masked: s.maskText, original: string(src[s.maskStart:s.maskEnd])})
		last = s.maskEnd
	}
	b.Write(src[last:])
	return maskedText{text: b.String(), regions: regions}, nil
}

var (
	envHeader  = regexp.MustCompile(`^(\s*)(-\s+)?environment:\s*(#.*)?$`)
	listAssign = regexp.MustCompile(`^(\s*-\s+)(["']?)([^=\s"'#]+)=(.*)$`)
	mapAssign  = regexp.MustCompile(`^(\s*["']?[^:#\s"'-][^:#"']*["']?\s*):(.*)$`)
)

// maskLines masks environment values line by line. It is used when a
// descriptor cannot be parsed, so it only understands block environments.
func maskLines(text string) maskedText {
	lines := strings.Split(text, "\n")
	var regions []region
	inEnv, envIndent := false, 0

	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		indent := len(line) - len(strings.TrimLeft(line, " "))

		if inEnv && trimmed != "" && indent <= envIndent {
			inEnv = false
		}
		if m := envHeader.FindStringSubmatch(line); m != nil {
			inEnv, envIndent = true, len(m[1])
			continue
		}
		if !inEnv || trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}

		if m := listAssign.FindStringSubmatchIndex(line); m != nil {
			// mask from the opening quote (if any) to the end of the value
			start := m[4]
			end := len(strings.TrimRight(stripComment(line), " \t\r"))
			key := line[m[6]:m[7]]
			masked := key + "=" + placeholder
			regions = append(regions, region{masked: masked, original: line[start:end]})
			lines[i] = line[:start] + masked + line[end:]
			continue
		}
		if m := mapAssign.FindStringSubmatchIndex(line); m != nil {
			start := m[4]
			end := len(strings.TrimRight(stripComment(line), " \t\r"))
			if end < start {
				end = start
			}
			masked := " " + placeholder
			regions = append(regions, region{masked: masked, original: line[start:end]})
			lines[i] = line[:start] + masked + line[end:]
		}
	}
	return maskedText{text: strings.Join(lines, "\n"), regions: regions}
}

func stripComment(line string) string {
	for i := 1; i < len(line); i++ {
		if line[i] == '#' && (line[i-1] == ' ' || line[i-1] == '\t') {
			return line[:i]
		}
	}
	return line
}

// restoredLines splits the masked text into lines and puts the original
// value back in place of every placeholder.
func (m maskedText) restoredLines() (masked, restored []string) {
	masked = splitLines(m.text)
	restored = make([]string, len(masked))
	next := 0
	for i, line := range masked {
		var b strings.Builder
		for {
			idx := strings.Index(line, placeholder)
			if idx < 0 || next >= len(m.regions) {
				b.WriteString(line)
				break
			}
			r := m.regions[next]
			next++
			start := idx - strings.Index(r.masked, placeholder)
			if start < 0 {
				start = 0
			}
			b.WriteString(line[:start])
			b.WriteString(r.original)
			line = line[min(len(line), start+len(r.masked)):]
		}
		restored[i] = b.String()
	}
	return masked, restored
}

func splitLines(text string) []string {
	text = strings.TrimSuffix(text, "\n")
	if text == "" {
		return nil
	}
	return strings.Split(text, "\n")
}

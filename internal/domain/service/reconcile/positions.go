package reconcile

import (
	"bytes"
	"fmt"
	"sort"
	"unicode/utf8"

	"appdeck/internal/domain/service/descriptor"

	"gopkg.in/yaml.v3"
)

// lineIndex maps yaml.v3 line/column marks to byte offsets. Columns count
// characters, not bytes.
type lineIndex struct {
	src    []byte
	starts []int
}

func newLineIndex(src []byte) *lineIndex {
	starts := []int{0}
	for i, b := range src {
		if b == '\n' {
			starts = append(starts, i+1)
		}
	}
	return &lineIndex{src: src, starts: starts}
}

func (li *lineIndex) offset(line, column int) (int, bool) {
	if line < 1 || line > len(li.starts) || column < 1 {
		return 0, false
	}
	off := li.starts[line-1]
	end := li.lineEnd(off)
	for c := 1; c < column; c++ {
		if off >= end {
			return 0, false
		}
		_, w := utf8.DecodeRune(li.src[off:end])
		off += w
	}
	return off, true
}

// lineEnd returns the offset of the newline ending the line containing off.
func (li *lineIndex) lineEnd(off int) int {
	if i := bytes.IndexByte(li.src[off:], '\n'); i >= 0 {
		return off + i
	}
	return len(li.src)
}

func (li *lineIndex) lineStart(off int) int {
	return bytes.LastIndexByte(li.src[:off], '\n') + 1
}

func (li *lineIndex) indentAt(off int) int {
	return leadingSpaces(li.src[li.lineStart(off):li.lineEnd(off)])
}

func leadingSpaces(line []byte) int {
	n := 0
	for n < len(line) && line[n] == ' ' {
		n++
	}
	return n
}

func isBlank(line []byte) bool {
	return len(bytes.TrimSpace(line)) == 0
}

// span locates one environment value in the source.
type span struct {
	service string
	key     string
	list    bool

	// maskStart:maskEnd is replaced by maskText when masking.
	maskStart, maskEnd int
	maskText           string

	// valueStart:valueEnd is the value token replaced on transfer. Tags and
	// anchors in front of the value are not part of it.
	valueStart, valueEnd int
	style                yaml.Style
	tag                  string
	flow                 bool
	indent               int
}

func (s span) empty() bool {
	return s.valueStart == s.valueEnd
}

// collectSpans locates every environment value of every service. Entries
// shared through an anchored environment appear once per service.
func collectSpans(doc *descriptor.Document) ([]span, error) {
	li := newLineIndex(doc.Source())
	var spans []span

	for _, svc := range doc.ServiceNames() {
		env, err := doc.Environment(svc)
		if err != nil {
			return nil, err
		}
		for _, entry := range env.Entries {
			var (
				s   span
				err error
			)
			if env.Form == descriptor.EnvList {
				s, err = listSpan(li, entry, env.Flow())
			} else {
				s, err = mappingSpan(li, entry, env.Flow())
			}
			if err != nil {
				return nil, fmt.Errorf("service %q, key %q: %w", svc, entry.Key, err)
			}
			s.service = svc
			spans = append(spans, s)
		}
	}

	sort.SliceStable(spans, func(i, j int) bool { return spans[i].maskStart < spans[j].maskStart })
	return spans, nil
}

func listSpan(li *lineIndex, entry descriptor.EnvEntry, flow bool) (span, error) {
	n := entry.ItemNode
	start, ok := li.offset(n.Line, n.Column)
	if !ok {
		return span{}, fmt.Errorf("position %d:%d out of range", n.Line, n.Column)
	}
	start = skipProperties(li.src, start)
	end, err := tokenEnd(li, n, start, flow)
	if err != nil {
		return span{}, err
	}
	return span{
		key:        entry.Key,
		list:       true,
		maskStart:  start,
		maskEnd:    end,
		maskText:   entry.Key + "=" + placeholder,
		valueStart: start,
		valueEnd:   end,
		style:      n.Style &^ yaml.TaggedStyle,
		tag:        n.ShortTag(),
		flow:       flow,
		indent:     li.indentAt(start),
	}, nil
}

func mappingSpan(li *lineIndex, entry descriptor.EnvEntry, flow bool) (span, error) {
	k, v := entry.KeyNode, entry.ValueNode

	keyStart, ok := li.offset(k.Line, k.Column)
	if !ok {
		return span{}, fmt.Errorf("key position %d:%d out of range", k.Line, k.Column)
	}
	keyEnd, err := tokenEnd(li, k, keyStart, flow)
	if err != nil {
		return span{}, err
	}
	colon := keyEnd
	for colon < len(li.src) && (li.src[colon] == ' ' || li.src[colon] == '\t') {
		colon++
	}
	hasColon := colon < len(li.src) && li.src[colon] == ':'

	s := span{
		key:    entry.Key,
		tag:    v.ShortTag(),
		style:  v.Style &^ yaml.TaggedStyle,
		flow:   flow,
		indent: li.indentAt(keyStart),
	}

	if entry.Null && entry.Value == "" && v.Kind == yaml.ScalarNode {
		if !hasColon {
			return span{}, fmt.Errorf("cannot locate empty value")
		}
		s.valueStart, s.valueEnd = colon+1, colon+1
	} else {
		start, ok := li.offset(v.Line, v.Column)
		if !ok {
			return span{}, fmt.Errorf("value position %d:%d out of range", v.Line, v.Column)
		}
		start = skipProperties(li.src, start)
		end, err := tokenEnd(li, v, start, flow)
		if err != nil {
			return span{}, err
		}
		s.valueStart, s.valueEnd = start, end
	}

	if hasColon {
		s.maskStart, s.maskEnd, s.maskText = colon+1, s.valueEnd, " "+placeholder
	} else {
		s.maskStart, s.maskEnd, s.maskText = s.valueStart, s.valueEnd, placeholder
	}
	return s, nil
}

// skipProperties moves past tags and anchors written in front of a value.
func skipProperties(src []byte, off int) int {
	for off < len(src) && (src[off] == '!' || src[off] == '&') {
		for off < len(src) && src[off] != ' ' && src[off] != '\t' && src[off] != '\n' {
			off++
		}
		for off < len(src) && (src[off] == ' ' || src[off] == '\t') {
			off++
		}
	}
	return off
}

// tokenEnd returns the offset just past the scalar token starting at start.
func tokenEnd(li *lineIndex, n *yaml.Node, start int, flow bool) (int, error) {
	src := li.src
	if start >= len(src) {
		return 0, fmt.Errorf("token starts past end of input")
	}
	style := n.Style &^ yaml.TaggedStyle

	switch {
	case style&yaml.DoubleQuotedStyle != 0:
		if src[start] != '"' {
			return 0, fmt.Errorf("expected '\"' at line %d", n.Line)
		}
		for i := start + 1; i < len(src); i++ {
			switch src[i] {
			case '\\':
				i++
			case '"':
				return i + 1, nil
			}
		}
		return 0, fmt.Errorf("unterminated double-quoted scalar at line %d", n.Line)

	case style&yaml.SingleQuotedStyle != 0:
		if src[start] != '\'' {
			return 0, fmt.Errorf("expected \"'\" at line %d", n.Line)
		}
		for i := start + 1; i < len(src); i++ {
			if src[i] != '\'' {
				continue
			}
			if i+1 < len(src) && src[i+1] == '\'' {
				i++
				continue
			}
			return i + 1, nil
		}
		return 0, fmt.Errorf("unterminated single-quoted scalar at line %d", n.Line)

	case style&(yaml.LiteralStyle|yaml.FoldedStyle) != 0:
		return blockEnd(li, start), nil
	}

	if n.Kind == yaml.ScalarNode && n.Value != "" && bytes.HasPrefix(src[start:], []byte(n.Value)) {
		return start + len(n.Value), nil
	}
	return plainEnd(li, start, flow), nil
}

// blockEnd returns the end of the last content line of a block scalar whose
// indicator is at start.
func blockEnd(li *lineIndex, start int) int {
	header := li.indentAt(start)
	end := li.lineEnd(start)
	for next := end + 1; next < len(li.src); {
		lineEnd := li.lineEnd(next)
		line := li.src[next:lineEnd]
		if !isBlank(line) {
			if leadingSpaces(line) <= header {
				break
			}
			end = lineEnd
		}
		next = lineEnd + 1
	}
	return trimCR(li.src, end)
}

// plainEnd finds the end of a plain scalar whose text does not match its
// parsed value, such as a multi-line plain scalar or an alias.
func plainEnd(li *lineIndex, start int, flow bool) int {
	end := trimLine(li.src, start, li.lineEnd(start), flow)
	if flow {
		return end
	}
	header := li.indentAt(start)
	for next := li.lineEnd(start) + 1; next < len(li.src); {
		lineEnd := li.lineEnd(next)
		line := li.src[next:lineEnd]
		trimmed := bytes.TrimSpace(line)
		if len(trimmed) == 0 || trimmed[0] == '#' || leadingSpaces(line) <= header {
			break
		}
		end = trimLine(li.src, next, lineEnd, false)
		next = lineEnd + 1
	}
	return end
}

// trimLine cuts a trailing comment and whitespace from src[start:end]. In
// flow context the scalar also ends at ',', ']' or '}'.
func trimLine(src []byte, start, end int, flow bool) int {
	for i := start; i < end; i++ {
		c := src[i]
		if c == '#' && i > start && (src[i-1] == ' ' || src[i-1] == '\t') {
			end = i
			break
		}
		if flow && (c == ',' || c == ']' || c == '}') {
			end = i
			break
		}
	}
	for end > start && (src[end-1] == ' ' || src[end-1] == '\t' || src[end-1] == '\r') {
		end--
	}
	return end
}

func trimCR(src []byte, end int) int {
	if end > 0 && src[end-1] == '\r' {
		return end - 1
	}
	return end
}

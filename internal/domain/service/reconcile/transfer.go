package reconcile

import (
	"fmt"
	"sort"
	"strings"

	"appdeck/internal/domain/model"
	"appdeck/internal/domain/service/descriptor"

	"gopkg.in/yaml.v3"
)

type edit struct {
	start, end int
	text       string
}

// ApplyTransfer writes the values of transfer into newText. Each value is
// rendered in the quoting style newText uses at that key; every other byte
// of newText is kept. Null values are written plain so they stay null. The result is parsed back and checked, and any failure
// returns an error wrapping model.ErrEnvTransfer so the caller can abort
// before applying anything.
func ApplyTransfer(newText []byte, transfer model.EnvTransferMap) ([]byte, error) {
	if transfer.Len() == 0 {
		return newText, nil
	}

	doc, err := descriptor.Parse(newText)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrEnvTransfer, err)
	}
	spans, err := collectSpans(doc)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrEnvTransfer, err)
	}

	edits := make(map[int]edit)
	for _, k := range transfer.Keys() {
		value := transfer[k.Service][k.Key]
		found := false
		for _, s := range spans {
			if s.service != k.Service || s.key != k.Key {
				continue
			}
			found = true
			text, err := render(s, value)
			if err != nil {
				return nil, fmt.Errorf("%w: %s.%s: %v", model.ErrEnvTransfer, k.Service, k.Key, err)
			}
			e := edit{start: s.valueStart, end: s.valueEnd, text: text}
			if text == "" {
				// An empty null drops the value token and the blanks before it.
				for e.start > 0 && (newText[e.start-1] == ' ' || newText[e.start-1] == '\t') {
					e.start--
				}
			}
			if prev, ok := edits[e.start]; ok && prev != e {
				return nil, fmt.Errorf("%w: %s.%s is shared with another service and has conflicting values", model.ErrEnvTransfer, k.Service, k.Key)
			}
			edits[e.start] = e
		}
		if !found {
			return nil, fmt.Errorf("%w: %s.%s not found in incoming descriptor", model.ErrEnvTransfer, k.Service, k.Key)
		}
	}

	ordered := make([]edit, 0, len(edits))
	for _, e := range edits {
		ordered = append(ordered, e)
	}
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].start > ordered[j].start })

	out := append([]byte(nil), newText...)
	for _, e := range ordered {
		out = append(out[:e.start], append([]byte(e.text), out[e.end:]...)...)
	}

	if err := verifyTransfer(doc, out, transfer); err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrEnvTransfer, err)
	}
	return out, nil
}

// verifyTransfer checks the merged text parses, carries the transferred
// values and is structurally identical to the incoming descriptor.
func verifyTransfer(incoming *descriptor.Document, merged []byte, transfer model.EnvTransferMap) error {
	doc, err := descriptor.Parse(merged)
	if err != nil {
		return fmt.Errorf("merged descriptor does not parse: %v", err)
	}
	envs := doc.Environments()
	for svc, vars := range transfer {
		for key, want := range vars {
			if got, ok := envs[svc][key]; !ok || !got.Same(want) {
				return fmt.Errorf("%s.%s reads back as %s, want %s", svc, key, describe(got), describe(want))
			}
		}
	}

	before, err := maskDocument(incoming)
	if err != nil {
		return err
	}
	after, err := maskDocument(doc)
	if err != nil {
		return err
	}
	if before.text != after.text {
		return fmt.Errorf("merged descriptor changed outside environment values")
	}
	return nil
}

func describe(v model.EnvValue) string {
	if v.Null {
		return "null"
	}
	return fmt.Sprintf("%q", v.Value)
}

// render formats value for the location s, keeping the style found there.
func render(s span, value model.EnvValue) (string, error) {
	if value.Null {
		return renderNull(s, value.Value)
	}
	text := value.Value
	if s.list {
		text = s.key + "=" + value.Value
	}

	var out string
	switch {
	case s.style&yaml.DoubleQuotedStyle != 0:
		out = doubleQuoted(text)
	case s.style&yaml.SingleQuotedStyle != 0:
		out = singleQuoted(text)
	case s.style&(yaml.LiteralStyle|yaml.FoldedStyle) != 0:
		out = literalBlock(text, s.indent+2)
	default:
		if plainSafe(text, s) {
			out = text
		} else {
			out = doubleQuoted(text)
		}
	}

	if s.empty() {
		out = " " + out
	}
	return out, nil
}

// renderNull writes a null in its original spelling. The list form has no
// way to express a null next to KEY=, so the transfer is refused there.
func renderNull(s span, spelling string) (string, error) {
	if s.list {
		return "", fmt.Errorf("cannot carry a null value into a list-form environment")
	}
	if spelling == "" {
		if s.flow {
			return "null", nil
		}
		return "", nil
	}
	if s.empty() {
		return " " + spelling, nil
	}
	return spelling, nil
}

func doubleQuoted(v string) string {
	var b strings.Builder
	b.WriteByte('"')
	for _, r := range v {
		switch r {
		case '\\':
			b.WriteString(`\\`)
		case '"':
			b.WriteString(`\"`)
		case '\n':
			b.WriteString(`\n`)
		case '\r':
			b.WriteString(`\r`)
		case '\t':
			b.WriteString(`\t`)
		default:
			if r < 0x20 || r == 0x7f {
				fmt.Fprintf(&b, `\x%02x`, r)
			} else {
				b.WriteRune(r)
			}
		}
	}
	b.WriteByte('"')
	return b.String()
}

// singleQuoted falls back to double quotes for values single quotes cannot
// hold on one line.
func singleQuoted(v string) string {
	if strings.ContainsAny(v, "\n\r\t") {
		return doubleQuoted(v)
	}
	return "'" + strings.ReplaceAll(v, "'", "''") + "'"
}

// literalBlock renders v as a literal block scalar indented by indent. Values
// a literal block cannot hold exactly are double-quoted instead.
func literalBlock(v string, indent int) string {
	body, header := v, "|-"
	if strings.HasSuffix(v, "\n") {
		body, header = strings.TrimSuffix(v, "\n"), "|"
	}
	if body == "" || strings.HasSuffix(body, "\n") || strings.HasPrefix(body, " ") ||
		strings.ContainsAny(body, "\r\t") {
		return doubleQuoted(v)
	}

	pad := strings.Repeat(" ", indent)
	var b strings.Builder
	b.WriteString(header)
	for _, line := range strings.Split(body, "\n") {
		b.WriteByte('\n')
		if line != "" {
			b.WriteString(pad)
			b.WriteString(line)
		}
	}
	return b.String()
}

// plainSafe reports whether text can be written unquoted at s and still read
// back as the same string with a compatible type.
func plainSafe(text string, s span) bool {
	if text == "" || strings.TrimSpace(text) != text || strings.ContainsAny(text, "\n\r\t") {
		return false
	}
	if strings.Contains(text, ": ") || strings.Contains(text, " #") || strings.HasSuffix(text, ":") {
		return false
	}
	if strings.ContainsRune("-?:,[]{}#&*!|>'\"%@`", rune(text[0])) {
		if !(text[0] == '-' && len(text) > 1 && text[1] != ' ') {
			return false
		}
	}
	if s.flow && strings.ContainsAny(text, ",[]{}") {
		return false
	}

	sample := "v: " + text
	if s.list {
		sample = "- " + text
	}
	var doc yaml.Node
	if err := yaml.Unmarshal([]byte(sample), &doc); err != nil || len(doc.Content) == 0 {
		return false
	}
	var n *yaml.Node
	if s.list {
		if len(doc.Content[0].Content) != 1 {
			return false
		}
		n = doc.Content[0].Content[0]
	} else {
		if len(doc.Content[0].Content) != 2 {
			return false
		}
		n = doc.Content[0].Content[1]
	}
	if n.Kind != yaml.ScalarNode || n.Value != text {
		return false
	}
	return n.ShortTag() == "!!str" || n.ShortTag() == s.tag
}

package template

import (
	"fmt"
	"regexp"
	"strings"
)

var varPattern = regexp.MustCompile(`\$\{([^}]+)}`)

// SubstituteKnown performs Compose-style substitution for the variables in
// vars only. Expressions naming any other variable are left untouched so the
// deployment backend can still interpolate them later. "$${VAR}" is the
// Compose escape for a literal "${VAR}" and is never substituted.
//
// Supported forms for known names:
//
//	${VAR}           value
//	${VAR:-default}  default if VAR is empty
//	${VAR-default}   value (VAR is always set when known)
//	${VAR:?err}      error if VAR is empty
//	${VAR?err}       value
func SubstituteKnown(input string, vars map[string]string) (string, error) {
	if len(vars) == 0 || !strings.Contains(input, "${") {
		return input, nil
	}

	indices := varPattern.FindAllStringSubmatchIndex(input, -1)
	if len(indices) == 0 {
		return input, nil
	}

	var b strings.Builder
	b.Grow(len(input))

	last := 0
	for _, idx := range indices {
		fullStart, fullEnd, exprStart, exprEnd := idx[0], idx[1], idx[2], idx[3]

		// "$${" escapes the expression.
		if fullStart > 0 && input[fullStart-1] == '$' {
			continue
		}

		expr := input[exprStart:exprEnd]
		name, op, operand := splitExpression(expr)
		value, known := vars[name]
		if !known {
			continue
		}

		b.WriteString(input[last:fullStart])
		switch op {
		case ":-":
			if value == "" {
				value = operand
			}
		case ":?":
			if value == "" {
				return "", fmt.Errorf("variable %s is empty: %s", name, operand)
			}
		}
		b.WriteString(value)
		last = fullEnd
	}
	b.WriteString(input[last:])

	return b.String(), nil
}

// splitExpression separates "NAME<op>operand"; two-character operators are checked first.
func splitExpression(expr string) (name, op, operand string) {
	for _, token := range []string{":-", ":?", "-", "?"} {
		if i := strings.Index(expr, token); i != -1 {
			return strings.TrimSpace(expr[:i]), token, expr[i+len(token):]
		}
	}
	return strings.TrimSpace(expr), "", ""
}

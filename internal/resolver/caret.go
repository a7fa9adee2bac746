package resolver

import "strings"

// ExpressionAtCaret returns the member-access expression that ends at the
// end of line: identifiers joined by '.', '->' and '::', with balanced call
// and subscript groups. Anything else ends the expression.
func ExpressionAtCaret(line string) string {
	i := len(line)
scan:
	for i > 0 {
		c := line[i-1]
		switch {
		case isIdentChar(c) || c == '~' || c == '.':
			i--
		case c == '>' && i >= 2 && line[i-2] == '-':
			i -= 2
		case c == ':' && i >= 2 && line[i-2] == ':':
			i -= 2
		case c == ')' || c == ']' || (c == '>' && strings.HasPrefix(line[i:], "::")):
			open := matchBackward(line, i-1)
			if open < 0 {
				break scan
			}
			i = open
		default:
			break scan
		}
	}
	expr := line[i:]
	for {
		switch {
		case strings.HasPrefix(expr, "."):
			expr = expr[1:]
		case strings.HasPrefix(expr, "->"):
			expr = expr[2:]
		default:
			return expr
		}
	}
}

// matchBackward returns the offset of the bracket opening the one that
// closes at line[end], or -1.
func matchBackward(line string, end int) int {
	closeCh := line[end]
	openCh := byte('(')
	switch closeCh {
	case ']':
		openCh = '['
	case '>':
		openCh = '<'
	}
	depth := 0
	for j := end; j >= 0; j-- {
		switch line[j] {
		case closeCh:
			depth++
		case openCh:
			depth--
			if depth == 0 {
				return j
			}
		}
	}
	return -1
}

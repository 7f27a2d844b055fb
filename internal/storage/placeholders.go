package storage

import (
	"strconv"
	"strings"
)

// placeholderCounter returns how many arguments a query expects. It is only
// consulted for drivers whose prepared statements report -1 from NumInput;
// database/sql checks the rest itself.
type placeholderCounter func(query string) int

// placeholderCounterFor returns the counter used for driverName, or nil when
// the driver reports its own parameter count.
func placeholderCounterFor(driverName string) placeholderCounter {
	switch driverName {
	case DriverMySQL:
		return nil
	case DriverSQLite:
		return countSQLitePlaceholders
	default:
		return countPlaceholders
	}
}

// countPlaceholders returns the number of positional '?' placeholders in
// query using MySQL lexical rules. Question marks inside quoted strings,
// quoted identifiers and comments are not placeholders.
func countPlaceholders(query string) int {
	count := 0
	for i := 0; i < len(query); i++ {
		switch c := query[i]; c {
		case '?':
			count++
		case '\'', '"', '`':
			i = skipQuoted(query, i, c, c != '`')
		case '#':
			i = skipLine(query, i)
		case '-':
			// MySQL needs whitespace or a control character after "--".
			if i+1 < len(query) && query[i+1] == '-' && (i+2 == len(query) || query[i+2] <= ' ') {
				i = skipLine(query, i)
			}
		case '/':
			if i+1 < len(query) && query[i+1] == '*' {
				i = skipBlock(query, i+2)
			}
		}
	}
	return count
}

// countSQLitePlaceholders returns the highest parameter index SQLite assigns
// in query, which is the number of arguments the statement binds. "?NNN"
// takes index NNN, a bare "?" takes one more than the largest index so far,
// and each distinct ":name", "@name" or "$name" takes a new index on first
// use.
func countSQLitePlaceholders(query string) int {
	highest := 0
	var named map[string]struct{}
	for i := 0; i < len(query); i++ {
		switch c := query[i]; c {
		case '?':
			j := i + 1
			for j < len(query) && query[j] >= '0' && query[j] <= '9' {
				j++
			}
			if j == i+1 {
				highest++
				continue
			}
			if n, err := strconv.Atoi(query[i+1 : j]); err == nil && n > highest {
				highest = n
			}
			i = j - 1
		case ':', '@', '$':
			j := i + 1
			for j < len(query) && isIdentByte(query[j]) {
				j++
			}
			if j == i+1 {
				continue
			}
			name := query[i:j]
			if _, seen := named[name]; !seen {
				if named == nil {
					named = make(map[string]struct{})
				}
				named[name] = struct{}{}
				highest++
			}
			i = j - 1
		case '\'', '"', '`':
			i = skipQuoted(query, i, c, false)
		case '[':
			if end := strings.IndexByte(query[i:], ']'); end >= 0 {
				i += end
			} else {
				i = len(query)
			}
		case '-':
			if i+1 < len(query) && query[i+1] == '-' {
				i = skipLine(query, i)
			}
		case '/':
			if i+1 < len(query) && query[i+1] == '*' {
				i = skipBlock(query, i+2)
			}
		}
	}
	return highest
}

func isIdentByte(b byte) bool {
	return b == '_' || b >= 0x80 ||
		(b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z') || (b >= '0' && b <= '9')
}

// skipQuoted returns the index of the closing quote for the literal opened
// at start. Doubled quotes stay inside the literal, and so do backslash
// escapes when backslashEscapes is set.
func skipQuoted(query string, start int, quote byte, backslashEscapes bool) int {
	for i := start + 1; i < len(query); i++ {
		switch query[i] {
		case '\\':
			if backslashEscapes {
				i++
			}
		case quote:
			if i+1 < len(query) && query[i+1] == quote {
				i++
				continue
			}
			return i
		}
	}
	return len(query)
}

func skipLine(query string, start int) int {
	for i := start; i < len(query); i++ {
		if query[i] == '\n' {
			return i
		}
	}
	return len(query)
}

func skipBlock(query string, start int) int {
	for i := start; i+1 < len(query); i++ {
		if query[i] == '*' && query[i+1] == '/' {
			return i + 1
		}
	}
	return len(query)
}

// Package sqlguard classifies generated SQL before it reaches the database.
// It is the sole safety boundary: the model that produced the statement is
// untrusted, so classification never consults anything but the text itself.
package sqlguard

import (
	"fmt"
	"strings"
	"unicode"
)

// UnsupportedError reports a statement that is not a read-only query.
type UnsupportedError struct {
	Statement string
	Reason    string
}

func (e *UnsupportedError) Error() string {
	return fmt.Sprintf("only read-only SELECT queries are permitted: %s", e.Reason)
}

// EnsureReadOnly accepts a statement only when its leading keyword is SELECT,
// or WITH whose top-level terminal statement is SELECT. Comments are skipped
// before keyword detection, quoted strings and parenthesized CTE bodies are
// ignored while scanning, and a second statement after a top-level semicolon
// is rejected outright.
func EnsureReadOnly(sqlText string) error {
	tokens, multi := topLevelKeywords(sqlText)
	if multi {
		return &UnsupportedError{Statement: sqlText, Reason: "multiple statements are not allowed"}
	}
	if len(tokens) == 0 {
		return &UnsupportedError{Statement: sqlText, Reason: "empty statement"}
	}

	switch tokens[0] {
	case "SELECT":
		return nil
	case "WITH":
		if terminal := terminalKeyword(tokens[1:]); terminal == "SELECT" {
			return nil
		} else if terminal == "" {
			return &UnsupportedError{Statement: sqlText, Reason: "WITH clause has no terminal SELECT"}
		} else {
			return &UnsupportedError{Statement: sqlText, Reason: fmt.Sprintf("refusing %s statement", terminal)}
		}
	default:
		return &UnsupportedError{Statement: sqlText, Reason: fmt.Sprintf("refusing %s statement", tokens[0])}
	}
}

// statementKeywords are the keywords that can begin a statement; the first
// one found at paren depth zero after a WITH clause decides the terminal
// statement kind.
var statementKeywords = map[string]bool{
	"SELECT": true, "INSERT": true, "UPDATE": true, "DELETE": true,
	"DROP": true, "ALTER": true, "CREATE": true, "TRUNCATE": true,
	"ATTACH": true, "DETACH": true, "PRAGMA": true, "COPY": true,
	"MERGE": true, "REPLACE": true, "GRANT": true, "REVOKE": true,
	"VACUUM": true, "CALL": true, "SET": true, "EXPLAIN": true,
	"DESCRIBE": true, "SHOW": true,
}

func terminalKeyword(tokens []string) string {
	for _, token := range tokens {
		if statementKeywords[token] {
			return token
		}
	}
	return ""
}

// topLevelKeywords returns the uppercased bare words found at paren depth
// zero, outside quotes and comments. multi reports a top-level semicolon
// followed by further content.
func topLevelKeywords(sqlText string) (tokens []string, multi bool) {
	runes := []rune(sqlText)
	depth := 0
	var word strings.Builder

	flush := func() {
		if word.Len() > 0 {
			tokens = append(tokens, strings.ToUpper(word.String()))
			word.Reset()
		}
	}

	for i := 0; i < len(runes); i++ {
		r := runes[i]
		switch {
		case r == '-' && i+1 < len(runes) && runes[i+1] == '-':
			flush()
			for i < len(runes) && runes[i] != '\n' {
				i++
			}
		case r == '/' && i+1 < len(runes) && runes[i+1] == '*':
			flush()
			i += 2
			for i+1 < len(runes) && !(runes[i] == '*' && runes[i+1] == '/') {
				i++
			}
			i++
		case r == '\'' || r == '"':
			flush()
			quote := r
			i++
			for i < len(runes) {
				if runes[i] == quote {
					// doubled quote is an escape
					if i+1 < len(runes) && runes[i+1] == quote {
						i += 2
						continue
					}
					break
				}
				i++
			}
		case r == '(':
			flush()
			depth++
		case r == ')':
			flush()
			if depth > 0 {
				depth--
			}
		case r == ';' && depth == 0:
			flush()
			if hasTrailingContent(runes[i+1:]) {
				return tokens, true
			}
		case unicode.IsLetter(r) || r == '_':
			if depth == 0 {
				word.WriteRune(r)
			}
		default:
			flush()
		}
	}
	flush()
	return tokens, false
}

func hasTrailingContent(rest []rune) bool {
	for i := 0; i < len(rest); i++ {
		r := rest[i]
		if unicode.IsSpace(r) || r == ';' {
			continue
		}
		if r == '-' && i+1 < len(rest) && rest[i+1] == '-' {
			for i < len(rest) && rest[i] != '\n' {
				i++
			}
			continue
		}
		return true
	}
	return false
}

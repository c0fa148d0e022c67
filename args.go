package imapc

import "strings"

// validateArg rejects CR or LF in a command argument before any bytes are
// written to the wire.
func validateArg(s string) error {
	if strings.ContainsAny(s, "\r\n") {
		return &Error{Kind: KindValidate, Info: "invalid character (CR or LF) in argument"}
	}
	return nil
}

// quoteArg quotes s as an IMAP quoted string, escaping backslash and
// double-quote. Callers must validateArg first; quoteArg does not itself
// reject CR/LF.
func quoteArg(s string) string {
	if !strings.ContainsAny(s, "\\\"") {
		return `"` + s + `"`
	}
	var sb strings.Builder
	sb.WriteByte('"')
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c == '\\' || c == '"' {
			sb.WriteByte('\\')
		}
		sb.WriteByte(c)
	}
	sb.WriteByte('"')
	return sb.String()
}

// quoteValidated validates then quotes s, the common case for mailbox
// names and similar string arguments.
func quoteValidated(s string) (string, error) {
	if err := validateArg(s); err != nil {
		return "", err
	}
	return quoteArg(s), nil
}

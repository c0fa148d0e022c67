package wire

import (
	"fmt"
	"strconv"
	"strings"
)

// ErrIncomplete signals that buf does not yet hold a complete response.
// NeedTotal is the minimum total buffer length (not additional bytes) the
// next parse attempt should wait for; 0 means the minimum is not yet
// knowable and every new read should retry the parse.
type ErrIncomplete struct {
	NeedTotal int
}

func (e *ErrIncomplete) Error() string {
	if e.NeedTotal == 0 {
		return "wire: incomplete response"
	}
	return fmt.Sprintf("wire: incomplete response, need %d bytes total", e.NeedTotal)
}

// ParseError is a fatal grammar violation; the stream is considered
// poisoned for further parsing once one is returned.
type ParseError struct {
	Msg string
}

func (e *ParseError) Error() string { return "wire: parse error: " + e.Msg }

// Parse consumes the prefix of buf that forms one complete server
// response. On success it returns the number of bytes consumed and the
// parsed Response, whose string/[]byte fields may borrow from buf. On a
// partial buffer it returns *ErrIncomplete. On a grammar violation it
// returns *ParseError.
func Parse(buf []byte) (consumed int, resp *Response, err error) {
	end, literals, err := scanFrame(buf)
	if err != nil {
		return 0, nil, err
	}
	toks := tokenize(buf, 0, end, literals)
	if len(toks) == 0 {
		return 0, nil, &ParseError{Msg: "empty response line"}
	}
	r, perr := classify(toks)
	if perr != nil {
		return 0, nil, perr
	}
	return end + 2, r, nil
}

func classify(toks []token) (*Response, error) {
	head := tokenText(toks[0])
	switch head {
	case "+":
		_, info, _ := parseRespText(toks, 1)
		return &Response{Kind: KindContinuation, Info: info}, nil
	case "*":
		return classifyUntagged(toks)
	default:
		if len(toks) < 2 {
			return nil, &ParseError{Msg: "tagged response missing status"}
		}
		status, ok := parseStatusWord(tokenText(toks[1]))
		if !ok {
			return nil, &ParseError{Msg: fmt.Sprintf("unexpected tagged status %q", tokenText(toks[1]))}
		}
		code, info, _ := parseRespText(toks, 2)
		return &Response{Kind: KindDone, Tag: head, Status: status, Code: code, Info: info}, nil
	}
}

func parseStatusWord(s string) (Status, bool) {
	switch strings.ToUpper(s) {
	case "OK":
		return StatusOK, true
	case "NO":
		return StatusNO, true
	case "BAD":
		return StatusBAD, true
	case "PREAUTH":
		return StatusPREAUTH, true
	case "BYE":
		return StatusBYE, true
	default:
		return 0, false
	}
}

func classifyUntagged(toks []token) (*Response, error) {
	if len(toks) < 2 {
		return nil, &ParseError{Msg: "untagged response missing keyword"}
	}
	second := tokenText(toks[1])

	// "* N KEYWORD" forms: EXISTS, RECENT, EXPUNGE, FETCH.
	if n, ok := parseUint32(second); ok && len(toks) >= 3 {
		kw := strings.ToUpper(tokenText(toks[2]))
		switch kw {
		case "EXISTS":
			return &Response{Kind: KindUntagged, Type: TypeExists, Seq: n}, nil
		case "RECENT":
			return &Response{Kind: KindUntagged, Type: TypeRecent, Seq: n}, nil
		case "EXPUNGE":
			return &Response{Kind: KindUntagged, Type: TypeExpunge, Seq: n}, nil
		case "FETCH":
			attrs, _ := parseFetchAttrs(toks, 3)
			return &Response{Kind: KindUntagged, Type: TypeFetch, Seq: n, Fetch: attrs}, nil
		}
	}

	if status, ok := parseStatusWord(second); ok {
		code, info, _ := parseRespText(toks, 2)
		return &Response{Kind: KindUntagged, Type: TypeStatus, Status: status, Code: code, Info: info}, nil
	}

	switch strings.ToUpper(second) {
	case "CAPABILITY":
		var caps []string
		for _, t := range toks[2:] {
			caps = append(caps, tokenText(t))
		}
		return &Response{Kind: KindUntagged, Type: TypeCapability, Caps: caps}, nil
	case "FLAGS":
		flags, _ := parseParenStrings(toks, 2)
		return &Response{Kind: KindUntagged, Type: TypeFlags, Flags: flags}, nil
	case "SEARCH":
		var ids []uint32
		for _, t := range toks[2:] {
			if n, ok := parseUint32(tokenText(t)); ok {
				ids = append(ids, n)
			}
		}
		return &Response{Kind: KindUntagged, Type: TypeSearch, SearchIDs: ids}, nil
	case "LIST", "LSUB":
		r, err := parseListLike(toks)
		if err != nil {
			return nil, err
		}
		if strings.ToUpper(second) == "LIST" {
			r.Type = TypeList
		} else {
			r.Type = TypeLsub
		}
		return r, nil
	case "STATUS":
		return parseStatusData(toks)
	case "ID":
		params, _ := parseIDParams(toks, 2)
		return &Response{Kind: KindUntagged, Type: TypeID, IDParams: params}, nil
	case "QUOTA":
		return parseQuota(toks)
	case "QUOTAROOT":
		mailbox := ""
		var roots []string
		if len(toks) > 2 {
			mailbox = tokenText(toks[2])
		}
		for _, t := range toks[3:] {
			roots = append(roots, tokenText(t))
		}
		return &Response{Kind: KindUntagged, Type: TypeQuotaRoot, Mailbox: mailbox, QuotaRoots: roots}, nil
	case "METADATA":
		return parseMetadata(toks)
	default:
		var parts []string
		for _, t := range toks[1:] {
			parts = append(parts, tokenText(t))
		}
		return &Response{Kind: KindUntagged, Type: TypeOther, Raw: strings.Join(parts, " ")}, nil
	}
}

func parseUint32(s string) (uint32, bool) {
	n, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		return 0, false
	}
	return uint32(n), true
}

func parseRespText(toks []token, i int) (*ResponseCode, string, int) {
	var code *ResponseCode
	if i < len(toks) && toks[i].kind == tokOpenBracket {
		code, i = parseRespCode(toks, i)
	}
	var parts []string
	for ; i < len(toks); i++ {
		parts = append(parts, tokenText(toks[i]))
	}
	return code, strings.Join(parts, " "), i
}

func parseRespCode(toks []token, i int) (*ResponseCode, int) {
	i++ // skip '['
	if i >= len(toks) {
		return nil, i
	}
	name := strings.ToUpper(tokenText(toks[i]))
	i++
	code := &ResponseCode{Name: name}
	switch name {
	case "PERMANENTFLAGS":
		flags, ni := parseParenStrings(toks, i)
		code.Flags = flags
		i = ni
	case "UIDVALIDITY", "UIDNEXT", "UNSEEN":
		if i < len(toks) {
			if n, ok := parseUint32(tokenText(toks[i])); ok {
				code.Number = n
			}
			i++
		}
	case "CAPABILITY":
		for i < len(toks) && toks[i].kind != tokCloseBracket {
			code.Caps = append(code.Caps, tokenText(toks[i]))
			i++
		}
	default:
		var parts []string
		for i < len(toks) && toks[i].kind != tokCloseBracket {
			parts = append(parts, tokenText(toks[i]))
			i++
		}
		code.Text = strings.Join(parts, " ")
	}
	for i < len(toks) && toks[i].kind != tokCloseBracket {
		i++
	}
	if i < len(toks) && toks[i].kind == tokCloseBracket {
		i++
	}
	return code, i
}

func parseParenStrings(toks []token, i int) ([]string, int) {
	if i >= len(toks) || toks[i].kind != tokOpenParen {
		return nil, i
	}
	i++
	var out []string
	for i < len(toks) && toks[i].kind != tokCloseParen {
		out = append(out, tokenText(toks[i]))
		i++
	}
	if i < len(toks) && toks[i].kind == tokCloseParen {
		i++
	}
	return out, i
}

func captureSexp(toks []token, i int) (string, int) {
	if i >= len(toks) {
		return "", i
	}
	if toks[i].kind != tokOpenParen {
		return tokenText(toks[i]), i + 1
	}
	depth := 0
	start := i
	for i < len(toks) {
		switch toks[i].kind {
		case tokOpenParen:
			depth++
		case tokCloseParen:
			depth--
		}
		i++
		if depth == 0 {
			break
		}
	}
	parts := make([]string, 0, i-start)
	for _, t := range toks[start:i] {
		parts = append(parts, tokenText(t))
	}
	return strings.Join(parts, " "), i
}

func captureBracket(toks []token, i int) (string, int) {
	i++ // skip '['
	start := i
	for i < len(toks) && toks[i].kind != tokCloseBracket {
		i++
	}
	var sb strings.Builder
	for k, t := range toks[start:i] {
		if k > 0 && t.kind != tokCloseParen && toks[start+k-1].kind != tokOpenParen {
			sb.WriteByte(' ')
		}
		sb.WriteString(tokenText(t))
	}
	if i < len(toks) && toks[i].kind == tokCloseBracket {
		i++
	}
	return sb.String(), i
}

func parseFetchAttrs(toks []token, i int) ([]FetchAttr, int) {
	if i >= len(toks) || toks[i].kind != tokOpenParen {
		return nil, i
	}
	i++
	var attrs []FetchAttr
	for i < len(toks) && toks[i].kind != tokCloseParen {
		name := strings.ToUpper(tokenText(toks[i]))
		i++
		attr := FetchAttr{Name: name}
		switch {
		case name == "UID" || name == "RFC822.SIZE":
			if i < len(toks) {
				if n, err := strconv.ParseUint(tokenText(toks[i]), 10, 64); err == nil {
					attr.Num = n
				}
				i++
			}
		case name == "FLAGS":
			flags, ni := parseParenStrings(toks, i)
			attr.Flags = flags
			i = ni
		case name == "INTERNALDATE":
			if i < len(toks) {
				attr.Date = tokenText(toks[i])
				i++
			}
		case name == "ENVELOPE" || name == "BODYSTRUCTURE" || name == "BODY" || name == "BODY.PEEK":
			if i < len(toks) && toks[i].kind == tokOpenBracket {
				section, ni := captureBracket(toks, i)
				attr.Section = section
				i = ni
				i = skipPartial(toks, i)
				attr.Bytes, i = readLiteralOrNil(toks, i)
			} else {
				text, ni := captureSexp(toks, i)
				attr.Text = text
				i = ni
			}
		case strings.HasPrefix(name, "BODY[") || strings.HasPrefix(name, "BODY.PEEK["):
			// section folded into the attribute name itself, e.g. "BODY[1.TEXT]"
			if open := strings.IndexByte(name, '['); open >= 0 {
				attr.Section = strings.TrimSuffix(name[open+1:], "]")
				attr.Name = name[:open]
				if name[:open] == "BODY" {
					attr.Name = "BODY"
				}
			}
			i = skipPartial(toks, i)
			attr.Bytes, i = readLiteralOrNil(toks, i)
		case name == "RFC822" || name == "RFC822.TEXT" || name == "RFC822.HEADER":
			attr.Bytes, i = readLiteralOrNil(toks, i)
		default:
			if i < len(toks) && toks[i].kind != tokCloseParen {
				attr.Text = tokenText(toks[i])
				i++
			}
		}
		attrs = append(attrs, attr)
	}
	if i < len(toks) && toks[i].kind == tokCloseParen {
		i++
	}
	return attrs, i
}

func skipPartial(toks []token, i int) int {
	if i < len(toks) && toks[i].kind == tokAtom && strings.HasPrefix(toks[i].text, "<") {
		i++
	}
	return i
}

func readLiteralOrNil(toks []token, i int) ([]byte, int) {
	if i >= len(toks) {
		return nil, i
	}
	switch toks[i].kind {
	case tokLiteral:
		return toks[i].lit, i + 1
	case tokString:
		return []byte(toks[i].text), i + 1
	case tokAtom:
		if strings.EqualFold(toks[i].text, "NIL") {
			return nil, i + 1
		}
	}
	return nil, i
}

func parseListLike(toks []token) (*Response, error) {
	i := 2
	attrs, ni := parseParenStrings(toks, i)
	i = ni
	var delim string
	if i < len(toks) {
		if strings.EqualFold(tokenText(toks[i]), "NIL") {
			i++
		} else {
			delim = tokenText(toks[i])
			i++
		}
	}
	var mailbox string
	if i < len(toks) {
		mailbox = tokenText(toks[i])
	}
	return &Response{Kind: KindUntagged, NameAttrs: attrs, Delim: delim, Mailbox: mailbox}, nil
}

func parseStatusData(toks []token) (*Response, error) {
	i := 2
	var mailbox string
	if i < len(toks) {
		mailbox = tokenText(toks[i])
		i++
	}
	attrs := make(map[string]uint64)
	if i < len(toks) && toks[i].kind == tokOpenParen {
		i++
		for i < len(toks) && toks[i].kind != tokCloseParen {
			key := strings.ToUpper(tokenText(toks[i]))
			i++
			var val uint64
			if i < len(toks) {
				val, _ = strconv.ParseUint(tokenText(toks[i]), 10, 64)
				i++
			}
			attrs[key] = val
		}
		if i < len(toks) && toks[i].kind == tokCloseParen {
			i++
		}
	}
	return &Response{Kind: KindUntagged, Type: TypeStatusData, Mailbox: mailbox, StatusAttrs: attrs}, nil
}

func parseIDParams(toks []token, i int) (map[string]string, int) {
	if i < len(toks) && strings.EqualFold(tokenText(toks[i]), "NIL") {
		return nil, i + 1
	}
	if i >= len(toks) || toks[i].kind != tokOpenParen {
		return nil, i
	}
	i++
	params := make(map[string]string)
	for i < len(toks) && toks[i].kind != tokCloseParen {
		key := tokenText(toks[i])
		i++
		var val string
		if i < len(toks) && toks[i].kind != tokCloseParen {
			val = tokenText(toks[i])
			i++
		}
		params[key] = val
	}
	if i < len(toks) && toks[i].kind == tokCloseParen {
		i++
	}
	return params, i
}

func parseQuota(toks []token) (*Response, error) {
	i := 2
	var root string
	if i < len(toks) {
		root = tokenText(toks[i])
		i++
	}
	var resources []QuotaResource
	if i < len(toks) && toks[i].kind == tokOpenParen {
		i++
		for i < len(toks) && toks[i].kind != tokCloseParen {
			name := tokenText(toks[i])
			i++
			var usage, limit uint64
			if i < len(toks) {
				usage, _ = strconv.ParseUint(tokenText(toks[i]), 10, 64)
				i++
			}
			if i < len(toks) {
				limit, _ = strconv.ParseUint(tokenText(toks[i]), 10, 64)
				i++
			}
			resources = append(resources, QuotaResource{Name: name, Usage: usage, Limit: limit})
		}
		if i < len(toks) && toks[i].kind == tokCloseParen {
			i++
		}
	}
	return &Response{Kind: KindUntagged, Type: TypeQuota, QuotaRoot: root, Quotas: resources}, nil
}

func parseMetadata(toks []token) (*Response, error) {
	i := 2
	var mailbox string
	if i < len(toks) {
		mailbox = tokenText(toks[i])
		i++
	}
	entries := make(map[string]*string)
	if i < len(toks) && toks[i].kind == tokOpenParen {
		i++
		for i < len(toks) && toks[i].kind != tokCloseParen {
			entry := tokenText(toks[i])
			i++
			if i < len(toks) {
				if toks[i].kind == tokAtom && strings.EqualFold(toks[i].text, "NIL") {
					entries[entry] = nil
				} else {
					v := tokenText(toks[i])
					entries[entry] = &v
				}
				i++
			}
		}
		if i < len(toks) && toks[i].kind == tokCloseParen {
			i++
		}
	} else {
		// Unsolicited single-entry form: "* METADATA mailbox entry"
		for i < len(toks) {
			entries[tokenText(toks[i])] = nil
			i++
		}
	}
	return &Response{Kind: KindUntagged, Type: TypeMetadata, Mailbox: mailbox, Metadata: entries}, nil
}

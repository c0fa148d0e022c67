package wire

import (
	"errors"
	"strings"
	"testing"
)

func mustParse(t *testing.T, buf []byte) (int, *Response) {
	t.Helper()
	consumed, resp, err := Parse(buf)
	if err != nil {
		t.Fatalf("Parse(%q): %v", buf, err)
	}
	return consumed, resp
}

func TestParseTaggedOK(t *testing.T) {
	consumed, resp := mustParse(t, []byte("A0001 OK LOGIN completed\r\n"))
	if consumed != len("A0001 OK LOGIN completed\r\n") {
		t.Fatalf("consumed = %d, want full line", consumed)
	}
	if resp.Kind != KindDone || resp.Tag != "A0001" || resp.Status != StatusOK {
		t.Fatalf("unexpected response: %+v", resp)
	}
	if resp.Info != "LOGIN completed" {
		t.Fatalf("Info = %q", resp.Info)
	}
}

func TestParseTaggedNOWithCode(t *testing.T) {
	_, resp := mustParse(t, []byte("A0002 NO [TRYCREATE] mailbox does not exist\r\n"))
	if resp.Status != StatusNO {
		t.Fatalf("Status = %v", resp.Status)
	}
	if resp.Code == nil || resp.Code.Name != "TRYCREATE" {
		t.Fatalf("Code = %+v", resp.Code)
	}
	if resp.Info != "mailbox does not exist" {
		t.Fatalf("Info = %q", resp.Info)
	}
}

func TestParseContinuation(t *testing.T) {
	_, resp := mustParse(t, []byte("+ idling\r\n"))
	if resp.Kind != KindContinuation || resp.Info != "idling" {
		t.Fatalf("unexpected response: %+v", resp)
	}
}

func TestParseIncompleteNoCRLF(t *testing.T) {
	_, _, err := Parse([]byte("A0001 O"))
	var incomplete *ErrIncomplete
	if !errors.As(err, &incomplete) {
		t.Fatalf("err = %v, want *ErrIncomplete", err)
	}
}

// S1 at the wire level: the CAPABILITY line yields its tokens as sent.
// The case-insensitive set built from them (Capabilities) lives in the
// imapc package and is tested in its capability_test.go.
func TestScenarioS1Capability(t *testing.T) {
	input := []byte("* CAPABILITY IMAP4REV1 STARTTLS\r\nA0001 OK\r\n")
	consumed, resp := mustParse(t, input)
	if resp.Kind != KindUntagged || resp.Type != TypeCapability {
		t.Fatalf("unexpected response: %+v", resp)
	}
	if len(resp.Caps) != 2 {
		t.Fatalf("Caps = %v, want 2 entries", resp.Caps)
	}
	if !strings.EqualFold(resp.Caps[0], "imap4rev1") {
		t.Fatalf("Caps[0] = %q, want the IMAP4rev1 marker", resp.Caps[0])
	}
	if resp.Caps[1] != "STARTTLS" {
		t.Fatalf("Caps[1] = %q, want STARTTLS", resp.Caps[1])
	}
	if resp.Caps[0] != "IMAP4REV1" {
		t.Fatalf("Caps[0] = %q, want the server's own spelling IMAP4REV1", resp.Caps[0])
	}

	// The remainder of input still holds the tagged OK.
	_, tail := mustParse(t, input[consumed:])
	if tail.Kind != KindDone || tail.Status != StatusOK {
		t.Fatalf("unexpected tail response: %+v", tail)
	}
}

// S2: SELECT INBOX status lines.
func TestScenarioS2Select(t *testing.T) {
	lines := []string{
		"* FLAGS (\\Answered \\Flagged \\Deleted \\Seen \\Draft)\r\n",
		"* OK [PERMANENTFLAGS (\\Answered \\Flagged \\Deleted \\Seen \\Draft \\*)] Limited\r\n",
		"* 1 EXISTS\r\n",
		"* 1 RECENT\r\n",
		"* OK [UNSEEN 1] Message 1 is first unseen\r\n",
		"* OK [UIDVALIDITY 1257842737] UIDs valid\r\n",
		"* OK [UIDNEXT 2] Predicted next UID\r\n",
		"A0001 OK [READ-WRITE] SELECT completed\r\n",
	}
	var responses []*Response
	for _, line := range lines {
		_, resp := mustParse(t, []byte(line))
		responses = append(responses, resp)
	}

	if responses[2].Seq != 1 || responses[2].Type != TypeExists {
		t.Fatalf("EXISTS: %+v", responses[2])
	}
	if responses[3].Seq != 1 || responses[3].Type != TypeRecent {
		t.Fatalf("RECENT: %+v", responses[3])
	}
	if responses[4].Code == nil || responses[4].Code.Name != "UNSEEN" || responses[4].Code.Number != 1 {
		t.Fatalf("UNSEEN: %+v", responses[4].Code)
	}
	if responses[5].Code.Number != 1257842737 {
		t.Fatalf("UIDVALIDITY: %+v", responses[5].Code)
	}
	if responses[6].Code.Number != 2 {
		t.Fatalf("UIDNEXT: %+v", responses[6].Code)
	}
	flags := responses[0].Flags
	if len(flags) != 5 {
		t.Fatalf("FLAGS: %v", flags)
	}
	permFlags := responses[1].Code.Flags
	if len(permFlags) != 6 || permFlags[5] != `\*` {
		t.Fatalf("PERMANENTFLAGS: %v", permFlags)
	}
	tagged := responses[7]
	if tagged.Code == nil || tagged.Code.Name != "READ-WRITE" {
		t.Fatalf("tagged OK code: %+v", tagged.Code)
	}
}

// S3: FETCH intermixed with an unrelated RECENT.
func TestScenarioS3FetchIntermixed(t *testing.T) {
	_, fetch := mustParse(t, []byte("* 37 FETCH (UID 74)\r\n"))
	if fetch.Type != TypeFetch || fetch.Seq != 37 {
		t.Fatalf("FETCH: %+v", fetch)
	}
	if len(fetch.Fetch) != 1 || fetch.Fetch[0].Name != "UID" || fetch.Fetch[0].Num != 74 {
		t.Fatalf("FETCH attrs: %+v", fetch.Fetch)
	}

	_, recent := mustParse(t, []byte("* 1 RECENT\r\n"))
	if recent.Type != TypeRecent || recent.Seq != 1 {
		t.Fatalf("RECENT: %+v", recent)
	}
}

// S4: EXPUNGE stream for UID EXPUNGE 2:4.
func TestScenarioS4Expunge(t *testing.T) {
	want := []uint32{2, 3, 4}
	input := "* 2 EXPUNGE\r\n* 3 EXPUNGE\r\n* 4 EXPUNGE\r\nA0001 OK EXPUNGE completed\r\n"
	buf := []byte(input)
	var got []uint32
	for i := 0; i < 3; i++ {
		consumed, resp := mustParse(t, buf)
		if resp.Type != TypeExpunge {
			t.Fatalf("response %d: %+v", i, resp)
		}
		got = append(got, resp.Seq)
		buf = buf[consumed:]
	}
	for i, n := range want {
		if got[i] != n {
			t.Fatalf("got[%d] = %d, want %d", i, got[i], n)
		}
	}
	_, tagged := mustParse(t, buf)
	if tagged.Kind != KindDone || tagged.Status != StatusOK {
		t.Fatalf("tagged: %+v", tagged)
	}
}

// A FETCH-style literal embedded mid-response parses as one frame,
// with the literal's raw bytes (including any embedded CRLFs) captured
// intact rather than terminating the scan early.
func TestLiteralEmbeddedCRLF(t *testing.T) {
	body := "line one\r\nline two"
	input := "* 1 FETCH (BODY[TEXT] {" + itoa(len(body)) + "}\r\n" + body + ")\r\n"
	_, resp := mustParse(t, []byte(input))
	if resp.Type != TypeFetch {
		t.Fatalf("unexpected response: %+v", resp)
	}
	if len(resp.Fetch) != 1 {
		t.Fatalf("attrs: %+v", resp.Fetch)
	}
	if string(resp.Fetch[0].Bytes) != body {
		t.Fatalf("literal bytes = %q, want %q", resp.Fetch[0].Bytes, body)
	}
}

func TestLiteralIncompleteWaitsForMoreData(t *testing.T) {
	input := []byte("* 1 FETCH (BODY[TEXT] {10}\r\nshort")
	_, _, err := Parse(input)
	var incomplete *ErrIncomplete
	if !errors.As(err, &incomplete) {
		t.Fatalf("err = %v, want *ErrIncomplete", err)
	}
	if incomplete.NeedTotal == 0 {
		t.Fatal("expected a concrete NeedTotal once the literal length is known")
	}
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	var digits []byte
	for n > 0 {
		digits = append([]byte{byte('0' + n%10)}, digits...)
		n /= 10
	}
	return string(digits)
}

package imapc

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net"
	"strings"
	"testing"
	"time"
)

// fakeServer drives one side of a net.Pipe as a scripted IMAP server: it
// reads the exact lines the test expects the client to send and writes
// back the corresponding response bytes. It fails the test if the client
// sends anything else.
type fakeServer struct {
	t    *testing.T
	conn net.Conn
	r    *bufio.Reader
}

func newFakeServerPair(t *testing.T) (client net.Conn, server *fakeServer) {
	t.Helper()
	c, s := net.Pipe()
	return c, &fakeServer{t: t, conn: s, r: bufio.NewReader(s)}
}

func (f *fakeServer) send(s string) {
	f.t.Helper()
	if _, err := f.conn.Write([]byte(s)); err != nil {
		f.t.Fatalf("server write: %v", err)
	}
}

func (f *fakeServer) expectLine(want string) string {
	f.t.Helper()
	line, err := f.r.ReadString('\n')
	if err != nil {
		f.t.Fatalf("server read: %v", err)
	}
	line = strings.TrimRight(line, "\r\n")
	if want != "" && line != want {
		f.t.Fatalf("server got %q, want %q", line, want)
	}
	return line
}

func (f *fakeServer) expectRaw(n int) []byte {
	f.t.Helper()
	buf := make([]byte, n)
	if _, err := io.ReadFull(f.r, buf); err != nil {
		f.t.Fatalf("server read literal: %v", err)
	}
	return buf
}

func (f *fakeServer) close() { f.conn.Close() }

func withDeadline(t *testing.T) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	t.Cleanup(cancel)
	return ctx
}

// S5: LOGIN failure returns the error and leaves the client usable.
func TestScenarioS5LoginFailureReturnsClient(t *testing.T) {
	client, server := newFakeServerPair(t)
	defer client.Close()
	defer server.close()

	done := make(chan struct{})
	go func() {
		defer close(done)
		server.send("* OK IMAP4rev1 Service Ready\r\n")
		server.expectLine(`A0001 LOGIN "joe" "wrongpass"`)
		server.send("A0001 NO bad credentials\r\n")
	}()

	ctx := withDeadline(t)
	uc, greeting, err := NewUnauthClient(ctx, client, nil)
	if err != nil {
		t.Fatalf("NewUnauthClient: %v", err)
	}
	if greeting.PreAuth {
		t.Fatal("unexpected PREAUTH greeting")
	}

	_, err = uc.Login(ctx, "joe", "wrongpass")
	if err == nil {
		t.Fatal("expected LOGIN to fail")
	}
	if !IsKind(err, KindNo) {
		t.Fatalf("error kind: %v", err)
	}
	// The client handle is still usable: a caller can retry.
	if uc == nil {
		t.Fatal("client handle should survive a failed LOGIN")
	}
	<-done
}

// S6: IDLE, manual interrupt via context cancellation, then DONE.
func TestScenarioS6IdleManualInterrupt(t *testing.T) {
	client, server := newFakeServerPair(t)
	defer client.Close()
	defer server.close()

	done := make(chan struct{})
	go func() {
		defer close(done)
		server.send("* OK ready\r\n")
		server.expectLine(`A0001 LOGIN "joe" "secret"`)
		server.send("A0001 OK LOGIN completed\r\n")
		server.expectLine("A0002 IDLE")
		server.send("+ idling\r\n")
		server.expectLine("DONE")
		server.send("A0002 OK IDLE terminated\r\n")
	}()

	ctx := withDeadline(t)
	uc, _, err := NewUnauthClient(ctx, client, nil)
	if err != nil {
		t.Fatalf("NewUnauthClient: %v", err)
	}
	sess, err := uc.Login(ctx, "joe", "secret")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}

	handle, err := sess.Idle(ctx)
	if err != nil {
		t.Fatalf("Idle: %v", err)
	}

	waitCtx, cancel := context.WithCancel(ctx)
	cancel() // manual interrupt: caller drops the cancellation token immediately
	if _, err := handle.Wait(waitCtx); err == nil {
		t.Fatal("expected Wait to report the manual interrupt")
	}

	if err := handle.Done(ctx); err != nil {
		t.Fatalf("Done: %v", err)
	}
	<-done
}

// S7: APPEND literal round-trip.
func TestScenarioS7AppendLiteral(t *testing.T) {
	client, server := newFakeServerPair(t)
	defer client.Close()
	defer server.close()

	body := []byte("Subject: hi\r\n\r\nhello there!!")
	done := make(chan struct{})
	go func() {
		defer close(done)
		server.send("* OK ready\r\n")
		server.expectLine(`A0001 LOGIN "joe" "secret"`)
		server.send("A0001 OK LOGIN completed\r\n")
		server.expectLine(fmt.Sprintf(`A0002 APPEND "INBOX" {%d}`, len(body)))
		server.send("+ Ready for literal\r\n")
		got := server.expectRaw(len(body))
		if string(got) != string(body) {
			server.t.Fatalf("literal body = %q, want %q", got, body)
		}
		server.expectLine("")
		server.send("A0002 OK APPEND completed\r\n")
	}()

	ctx := withDeadline(t)
	uc, _, err := NewUnauthClient(ctx, client, nil)
	if err != nil {
		t.Fatalf("NewUnauthClient: %v", err)
	}
	sess, err := uc.Login(ctx, "joe", "secret")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if err := sess.Append(ctx, "INBOX", body); err != nil {
		t.Fatalf("Append: %v", err)
	}
	<-done
}

// APPEND whose literal announcement the server rejects outright must
// surface as KindAppend rather than a generic parse failure.
func TestAppendRejectedBeforeContinuation(t *testing.T) {
	client, server := newFakeServerPair(t)
	defer client.Close()
	defer server.close()

	done := make(chan struct{})
	go func() {
		defer close(done)
		server.send("* OK ready\r\n")
		server.expectLine(`A0001 LOGIN "joe" "secret"`)
		server.send("A0001 OK LOGIN completed\r\n")
		server.expectLine(`A0002 APPEND "INBOX" {5}`)
		server.send("A0002 BAD literal too large\r\n")
	}()

	ctx := withDeadline(t)
	uc, _, err := NewUnauthClient(ctx, client, nil)
	if err != nil {
		t.Fatalf("NewUnauthClient: %v", err)
	}
	sess, err := uc.Login(ctx, "joe", "secret")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	err = sess.Append(ctx, "INBOX", []byte("hello"))
	if !IsKind(err, KindAppend) {
		t.Fatalf("error kind: %v", err)
	}
	<-done
}

// S2/S3: SELECT snapshot and FETCH with an intermixed unsolicited RECENT.
func TestSelectSnapshotAndFetchIntermixedRecent(t *testing.T) {
	client, server := newFakeServerPair(t)
	defer client.Close()
	defer server.close()

	done := make(chan struct{})
	go func() {
		defer close(done)
		server.send("* OK ready\r\n")
		server.expectLine(`A0001 LOGIN "joe" "secret"`)
		server.send("A0001 OK LOGIN completed\r\n")
		server.expectLine(`A0002 SELECT "INBOX"`)
		server.send("* FLAGS (\\Answered \\Flagged \\Deleted \\Seen \\Draft)\r\n")
		server.send("* OK [PERMANENTFLAGS (\\Answered \\Flagged \\Deleted \\Seen \\Draft \\*)] Limited\r\n")
		server.send("* 1 EXISTS\r\n")
		server.send("* 1 RECENT\r\n")
		server.send("* OK [UNSEEN 1] Message 1 is first unseen\r\n")
		server.send("* OK [UIDVALIDITY 1257842737] UIDs valid\r\n")
		server.send("* OK [UIDNEXT 2] Predicted next UID\r\n")
		server.send("A0002 OK [READ-WRITE] SELECT completed\r\n")

		server.expectLine("A0003 FETCH 37 (UID)")
		server.send("* 37 FETCH (UID 74)\r\n")
		server.send("* 1 RECENT\r\n")
		server.send("A0003 OK FETCH completed\r\n")
	}()

	ctx := withDeadline(t)
	uc, _, err := NewUnauthClient(ctx, client, nil)
	if err != nil {
		t.Fatalf("NewUnauthClient: %v", err)
	}
	sess, err := uc.Login(ctx, "joe", "secret")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}

	snap, err := sess.Select(ctx, "INBOX")
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	if snap.Exists != 1 || snap.Recent != 1 {
		t.Fatalf("snapshot counts: %+v", snap)
	}
	if snap.Unseen == nil || *snap.Unseen != 1 {
		t.Fatalf("Unseen: %+v", snap.Unseen)
	}
	if snap.UIDValidity == nil || *snap.UIDValidity != 1257842737 {
		t.Fatalf("UIDValidity: %+v", snap.UIDValidity)
	}
	if snap.UIDNext == nil || *snap.UIDNext != 2 {
		t.Fatalf("UIDNext: %+v", snap.UIDNext)
	}
	if !snap.ReadWrite {
		t.Fatal("expected ReadWrite per [READ-WRITE]")
	}

	rows, err := sess.Fetch(ctx, "37", "(UID)")
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if !rows.Next(ctx) {
		t.Fatalf("Next: %v", rows.Err())
	}
	row := rows.Row()
	if row.Message != 37 || row.UID == nil || *row.UID != 74 {
		t.Fatalf("row: %+v", row)
	}
	if rows.Next(ctx) {
		t.Fatal("expected exactly one FETCH row")
	}
	if err := rows.Close(ctx); err != nil {
		t.Fatalf("Close: %v", err)
	}

	unsolicited, ok := sess.Unsolicited().TryRecv()
	if !ok {
		t.Fatal("expected the intermixed RECENT to be routed to the unsolicited channel")
	}
	if unsolicited.Kind != UnsolicitedRecent || unsolicited.N != 1 {
		t.Fatalf("unsolicited: %+v", unsolicited)
	}

	<-done
}

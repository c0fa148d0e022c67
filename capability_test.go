package imapc

import "testing"

// S1: case-insensitive capability set, membership both ways.
func TestCapabilitiesAddAndQuery(t *testing.T) {
	c := newCapabilities()
	for _, tok := range []string{"IMAP4rev1", "IDLE", "auth=plain", "UIDPLUS"} {
		c.add(tok)
	}

	if !c.Imap4rev1() {
		t.Fatal("Imap4rev1() = false")
	}
	if !c.HasStr("idle") {
		t.Fatal("HasStr(\"idle\") = false, want true (case-insensitive)")
	}
	if !c.HasStr("UIDPLUS") {
		t.Fatal("HasStr(\"UIDPLUS\") = false")
	}
	if !c.HasAuth("PLAIN") {
		t.Fatal("HasAuth(\"PLAIN\") = false, want true (case-insensitive)")
	}
	if c.HasAuth("login") {
		t.Fatal("HasAuth(\"login\") = true, want false")
	}
	if c.Size() != 4 {
		t.Fatalf("Size() = %d, want 4", c.Size())
	}
}

func TestCapabilitiesHasStrExcludesAuthMechanisms(t *testing.T) {
	c := newCapabilities()
	c.add("AUTH=LOGIN")

	if c.HasStr("LOGIN") {
		t.Fatal("HasStr(\"LOGIN\") should not match an AUTH= mechanism")
	}
	if !c.HasAuth("LOGIN") {
		t.Fatal("HasAuth(\"LOGIN\") = false")
	}
}

package xoauth2

import "testing"

func TestStepFormatsBearerResponse(t *testing.T) {
	a := New("joe@gmail.com", "ya29.abcdef")
	resp, err := a.Step(nil)
	if err != nil {
		t.Fatalf("Step: %v", err)
	}
	want := "user=joe@gmail.com\x01auth=Bearer ya29.abcdef\x01\x01"
	if string(resp) != want {
		t.Fatalf("Step = %q, want %q", resp, want)
	}
}

func TestStepIsOneShot(t *testing.T) {
	a := New("joe@gmail.com", "ya29.abcdef")
	if _, err := a.Step(nil); err != nil {
		t.Fatalf("first Step: %v", err)
	}
	resp, err := a.Step([]byte("unexpected second challenge"))
	if err != nil {
		t.Fatalf("second Step: %v", err)
	}
	if len(resp) != 0 {
		t.Fatalf("second Step = %q, want empty response to end the exchange", resp)
	}
}

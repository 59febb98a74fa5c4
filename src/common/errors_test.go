package common

import (
	"errors"
	"fmt"
	"testing"
)

func TestIsDCFErr(t *testing.T) {
	cause := errors.New("connection refused")
	err := NewDCFErr(Transport, "127.0.0.1:1337", cause)

	if !IsDCFErr(err, Transport) {
		t.Fatalf("expected Transport error")
	}
	if IsDCFErr(err, Serialization) {
		t.Fatalf("Transport error should not match Serialization")
	}
	if !errors.Is(err, cause) {
		t.Fatalf("cause should be reachable through Unwrap")
	}

	wrapped := fmt.Errorf("sending: %w", err)
	if !IsDCFErr(wrapped, Transport) {
		t.Fatalf("wrapped error should still match")
	}

	if IsDCFErr(cause, Transport) {
		t.Fatalf("plain error should not match")
	}
}

func TestDCFErrMessage(t *testing.T) {
	for _, c := range []struct {
		err DCFErr
		out string
	}{
		{NewDCFErr(AlreadyRunning, "", nil), "Already Running"},
		{NewDCFErr(InvalidMode, "relay", nil), "Invalid Mode, relay"},
		{NewDCFErr(InvalidValue, "port", errors.New("not a number")), "Invalid Value, port: not a number"},
	} {
		if got := c.err.Error(); got != c.out {
			t.Errorf("Error() => %q != %q", got, c.out)
		}
	}
}

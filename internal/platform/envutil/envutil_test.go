package envutil

import (
	"testing"
	"time"
)

func TestDurationAcceptsSecondsAndGoSyntax(t *testing.T) {
	t.Setenv("X_TIMEOUT", "90")
	if got := Duration("X_TIMEOUT", time.Second, nil); got != 90*time.Second {
		t.Fatalf("seconds: got=%s", got)
	}
	t.Setenv("X_TIMEOUT", "2m")
	if got := Duration("X_TIMEOUT", time.Second, nil); got != 2*time.Minute {
		t.Fatalf("go syntax: got=%s", got)
	}
	t.Setenv("X_TIMEOUT", "soon")
	if got := Duration("X_TIMEOUT", time.Second, nil); got != time.Second {
		t.Fatalf("fallback: got=%s", got)
	}
}

func TestListDropsBlanks(t *testing.T) {
	t.Setenv("X_ORIGINS", " http://a , ,http://b")
	got := List("X_ORIGINS", nil, nil)
	if len(got) != 2 || got[0] != "http://a" || got[1] != "http://b" {
		t.Fatalf("unexpected list: %#v", got)
	}
}

func TestIntAndBoolDefaults(t *testing.T) {
	t.Setenv("X_INT", "nope")
	if got := Int("X_INT", 7, nil); got != 7 {
		t.Fatalf("int fallback: got=%d", got)
	}
	t.Setenv("X_BOOL", "off")
	if Bool("X_BOOL", true, nil) {
		t.Fatalf("bool: expected false")
	}
}

//go:build e2e

package e2e

import (
	"fmt"
	"strings"
	"testing"
)

func TestS3RoundTrip(t *testing.T) {
	env := s3Env()

	out, stderr, err := runCLI(t, env, "hello from e2e", "put", "greeting.txt", "--path", "e2e")
	if err != nil {
		t.Fatalf("put failed: %v\n%s", err, stderr)
	}
	if out != "e2e/greeting.txt 14 bytes\n" {
		t.Fatalf("unexpected put output %q", out)
	}

	out, stderr, err = runCLI(t, env, "", "get", "greeting.txt", "--path", "e2e")
	if err != nil {
		t.Fatalf("get failed: %v\n%s", err, stderr)
	}
	if out != "hello from e2e" {
		t.Fatalf("unexpected get output %q", out)
	}

	_, stderr, err = runCLI(t, env, "", "get", "absent.txt", "--path", "e2e")
	if err == nil || !strings.Contains(stderr, "not found") {
		t.Fatalf("expected not found, got %v\n%s", err, stderr)
	}
}

func TestS3ListPaginates(t *testing.T) {
	env := s3Env()

	for i := 0; i < 120; i++ {
		if _, stderr, err := runCLI(t, env, "x", "put", fmt.Sprintf("%03d", i), "--path", "paged"); err != nil {
			t.Fatalf("put %d failed: %v\n%s", i, err, stderr)
		}
	}

	out, stderr, err := runCLI(t, env, "", "ls", "paged")
	if err != nil {
		t.Fatalf("ls failed: %v\n%s", err, stderr)
	}
	keys := strings.Fields(out)
	if len(keys) != 120 {
		t.Fatalf("expected 120 keys, got %d", len(keys))
	}
}

func TestS3CompressedRoundTrip(t *testing.T) {
	env := s3Env()
	payload := strings.Repeat("bridge ", 500)

	if _, stderr, err := runCLI(t, env, payload, "put", "blob", "--compressed"); err != nil {
		t.Fatalf("put failed: %v\n%s", err, stderr)
	}

	out, stderr, err := runCLI(t, env, "", "get", "blob", "--compressed")
	if err != nil {
		t.Fatalf("get failed: %v\n%s", err, stderr)
	}
	if out != payload {
		t.Fatalf("compressed round trip mismatch: got %d bytes", len(out))
	}
}

func TestBackendsVerify(t *testing.T) {
	out, stderr, err := runCLI(t, s3Env(), "", "backends", "--verify")
	if err != nil {
		t.Fatalf("backends failed: %v\n%s", err, stderr)
	}
	if !strings.Contains(out, "selected") || !strings.Contains(out, "AWS account") {
		t.Fatalf("unexpected backends output:\n%s", out)
	}
}

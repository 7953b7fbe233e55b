package security

import (
	"strings"
	"testing"
)

func TestGenerateVotingCodeAlphabet(t *testing.T) {
	for i := 0; i < 50; i++ {
		code, err := GenerateVotingCode(4)
		if err != nil {
			t.Fatalf("GenerateVotingCode returned error: %v", err)
		}
		if len(code) != 4 {
			t.Fatalf("expected 4 characters, got %q", code)
		}
		for _, r := range code {
			if !strings.ContainsRune(safeChars, r) {
				t.Fatalf("code %q contains %q outside the safe alphabet", code, r)
			}
		}
		if strings.ContainsAny(code, "01OI") {
			t.Fatalf("code %q contains an ambiguous character", code)
		}
	}
}

func TestGenerateVotingCodeRejectsNonPositiveLength(t *testing.T) {
	if _, err := GenerateVotingCode(0); err == nil {
		t.Fatal("expected error for zero length")
	}
	if _, err := GenerateVotingCode(-3); err == nil {
		t.Fatal("expected error for negative length")
	}
}

func TestNormalizeVotingCode(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"a7kq", "A7KQ"},
		{" A7KQ ", "A7KQ"},
		{"a7-kq", "A7KQ"},
		{"A 7 K Q", "A7KQ"},
		{"a-7 k-q", "A7KQ"},
	}
	for _, tc := range cases {
		if got := NormalizeVotingCode(tc.in); got != tc.want {
			t.Fatalf("NormalizeVotingCode(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestHashTokenIsDeterministicAndOpaque(t *testing.T) {
	if HashToken("A7KQ") != HashToken("A7KQ") {
		t.Fatal("hash is not deterministic")
	}
	if HashToken("A7KQ") == HashToken("A7KR") {
		t.Fatal("distinct codes produced the same hash")
	}
	if len(HashToken("A7KQ")) != 64 {
		t.Fatalf("expected hex sha256 digest, got %q", HashToken("A7KQ"))
	}
	if strings.Contains(HashToken("A7KQ"), "A7KQ") {
		t.Fatal("hash leaks the plaintext")
	}
}

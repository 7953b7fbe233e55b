package security

import (
	"fmt"
	"testing"

	"github.com/timothysaatum/election-system/internal/core/domain"
)

func TestArgon2RoundTrip(t *testing.T) {
	hash, err := HashPassword("correct horse battery")
	if err != nil {
		t.Fatalf("HashPassword returned error: %v", err)
	}

	match, err := VerifyPassword("correct horse battery", hash)
	if err != nil {
		t.Fatalf("VerifyPassword returned error: %v", err)
	}
	if !match {
		t.Fatal("correct password did not verify")
	}

	match, err = VerifyPassword("wrong password", hash)
	if err != nil {
		t.Fatalf("VerifyPassword returned error: %v", err)
	}
	if match {
		t.Fatal("wrong password verified")
	}
}

func TestArgon2HashesAreSalted(t *testing.T) {
	first, err := HashPassword("same password")
	if err != nil {
		t.Fatalf("HashPassword returned error: %v", err)
	}
	second, err := HashPassword("same password")
	if err != nil {
		t.Fatalf("HashPassword returned error: %v", err)
	}
	if first == second {
		t.Fatal("two hashes of the same password are identical")
	}
}

func TestStaffDirectoryParsesRoleLists(t *testing.T) {
	adminHash, err := HashPassword("admin pass")
	if err != nil {
		t.Fatalf("HashPassword returned error: %v", err)
	}
	agentHash, err := HashPassword("agent pass")
	if err != nil {
		t.Fatalf("HashPassword returned error: %v", err)
	}

	dir, err := NewStaffDirectory(
		fmt.Sprintf("ec_admin:%s", adminHash),
		"",
		fmt.Sprintf("agent_one:%s;agent_two:%s", agentHash, agentHash),
	)
	if err != nil {
		t.Fatalf("NewStaffDirectory returned error: %v", err)
	}
	if dir.Count() != 3 {
		t.Fatalf("expected 3 staff users, got %d", dir.Count())
	}

	user, ok := dir.Authenticate("ec_admin", "admin pass")
	if !ok {
		t.Fatal("admin failed to authenticate")
	}
	if user.Role != domain.RoleAdmin || !user.IsAdmin() {
		t.Fatalf("unexpected role %q", user.Role)
	}

	agent, ok := dir.Authenticate("agent_one", "agent pass")
	if !ok {
		t.Fatal("polling agent failed to authenticate")
	}
	if agent.Role != domain.RolePollingAgent {
		t.Fatalf("unexpected role %q", agent.Role)
	}
	if agent.HasPermission("generate_tokens") {
		t.Fatal("polling agent must not hold generate_tokens")
	}
}

func TestStaffDirectoryRejectsDuplicatesAndMalformedEntries(t *testing.T) {
	hash, err := HashPassword("pass")
	if err != nil {
		t.Fatalf("HashPassword returned error: %v", err)
	}

	if _, err := NewStaffDirectory(
		fmt.Sprintf("ec_admin:%s", hash),
		fmt.Sprintf("ec_admin:%s", hash),
		"",
	); err == nil {
		t.Fatal("expected error for duplicate username across roles")
	}

	if _, err := NewStaffDirectory("no-colon-entry", "", ""); err == nil {
		t.Fatal("expected error for malformed entry")
	}
}

func TestStaffDirectoryUnknownUserFails(t *testing.T) {
	hash, err := HashPassword("pass")
	if err != nil {
		t.Fatalf("HashPassword returned error: %v", err)
	}
	dir, err := NewStaffDirectory(fmt.Sprintf("ec_admin:%s", hash), "", "")
	if err != nil {
		t.Fatalf("NewStaffDirectory returned error: %v", err)
	}

	if _, ok := dir.Authenticate("ghost", "pass"); ok {
		t.Fatal("unknown user authenticated")
	}
	if _, ok := dir.Lookup("ghost"); ok {
		t.Fatal("unknown user resolved by lookup")
	}
}

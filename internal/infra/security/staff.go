package security

import (
	"fmt"
	"strings"

	"github.com/timothysaatum/election-system/internal/core/domain"
)

// StaffDirectory holds the env-configured staff users keyed by username.
// Staff accounts never live in the database; they are provisioned through
// deployment configuration only.
type StaffDirectory struct {
	users map[string]domain.StaffUser
}

// NewStaffDirectory parses the per-role user lists. Each list has the form
// "username:argon2hash;username:argon2hash". Entries are separated by
// semicolons because the hash encoding itself contains commas. Duplicate
// usernames across roles are rejected so a login always maps to exactly
// one role.
func NewStaffDirectory(adminUsers, ecOfficialUsers, pollingAgentUsers string) (*StaffDirectory, error) {
	dir := &StaffDirectory{users: make(map[string]domain.StaffUser)}

	lists := []struct {
		raw  string
		role string
	}{
		{adminUsers, domain.RoleAdmin},
		{ecOfficialUsers, domain.RoleECOfficial},
		{pollingAgentUsers, domain.RolePollingAgent},
	}

	for _, list := range lists {
		if err := dir.addList(list.raw, list.role); err != nil {
			return nil, err
		}
	}

	return dir, nil
}

func (d *StaffDirectory) addList(raw, role string) error {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}

	for _, entry := range strings.Split(raw, ";") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}

		username, hash, found := strings.Cut(entry, ":")
		username = strings.TrimSpace(username)
		if !found || username == "" || hash == "" {
			return fmt.Errorf("staff: malformed %s user entry", role)
		}

		if _, exists := d.users[username]; exists {
			return fmt.Errorf("staff: duplicate username %q", username)
		}

		d.users[username] = domain.StaffUser{
			Username:     username,
			PasswordHash: hash,
			Role:         role,
			Permissions:  domain.PermissionsForRole(role),
		}
	}

	return nil
}

// Count returns the number of configured staff users.
func (d *StaffDirectory) Count() int {
	return len(d.users)
}

// Authenticate verifies a username and password pair against the directory.
// It returns false for unknown usernames and for wrong passwords alike.
func (d *StaffDirectory) Authenticate(username, password string) (domain.StaffUser, bool) {
	user, ok := d.users[username]
	if !ok {
		// Burn a hash verification anyway so unknown usernames take the
		// same time as wrong passwords.
		_, _ = VerifyPassword(password, "argon2id$v=19$m=65536,t=3,p=4$AAAAAAAAAAAAAAAAAAAAAA$AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA")
		return domain.StaffUser{}, false
	}

	match, err := VerifyPassword(password, user.PasswordHash)
	if err != nil || !match {
		return domain.StaffUser{}, false
	}

	return user, true
}

// Lookup returns the staff user for a username without verifying credentials.
func (d *StaffDirectory) Lookup(username string) (domain.StaffUser, bool) {
	user, ok := d.users[username]
	return user, ok
}

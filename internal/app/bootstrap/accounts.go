// internal/app/bootstrap/accounts.go
package bootstrap

import (
	"fmt"
	"strings"

	"github.com/stockboard/stockboard/internal/app/system/auth"
)

// parseAccounts parses the seeded account list from configuration.
// Each entry is username|bcrypt_hash|display name|branch|role; entries
// are separated by semicolons. Role defaults to "staff" when omitted.
func parseAccounts(raw string) ([]auth.Account, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}

	var accounts []auth.Account
	for _, entry := range strings.Split(raw, ";") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		parts := strings.Split(entry, "|")
		if len(parts) < 4 {
			return nil, fmt.Errorf("account entry %q: want username|hash|name|branch[|role]", entry)
		}
		a := auth.Account{
			Username:     strings.TrimSpace(parts[0]),
			PasswordHash: strings.TrimSpace(parts[1]),
			Name:         strings.TrimSpace(parts[2]),
			Branch:       strings.TrimSpace(parts[3]),
			Role:         "staff",
		}
		if len(parts) > 4 && strings.TrimSpace(parts[4]) != "" {
			a.Role = strings.TrimSpace(parts[4])
		}
		if a.Username == "" || a.PasswordHash == "" {
			return nil, fmt.Errorf("account entry %q: username and hash are required", entry)
		}
		accounts = append(accounts, a)
	}
	return accounts, nil
}

package bootstrap

import "testing"

func TestParseAccounts(t *testing.T) {
	accounts, err := parseAccounts("alice|$2a$12$hash|Alice Chan|Downtown; boss|$2a$12$hash2|The Boss|HQ|admin")
	if err != nil {
		t.Fatalf("parseAccounts() error = %v", err)
	}
	if len(accounts) != 2 {
		t.Fatalf("parseAccounts() = %d accounts, want 2", len(accounts))
	}
	if accounts[0].Username != "alice" || accounts[0].Role != "staff" {
		t.Errorf("first account = %+v, want alice with default staff role", accounts[0])
	}
	if accounts[1].Role != "admin" || accounts[1].Branch != "HQ" {
		t.Errorf("second account = %+v, want HQ admin", accounts[1])
	}
}

func TestParseAccounts_Empty(t *testing.T) {
	accounts, err := parseAccounts("  ")
	if err != nil {
		t.Fatalf("parseAccounts() error = %v", err)
	}
	if accounts != nil {
		t.Errorf("parseAccounts() = %v, want nil for blank config", accounts)
	}
}

func TestParseAccounts_TrailingSeparator(t *testing.T) {
	accounts, err := parseAccounts("alice|h|Alice|Downtown;")
	if err != nil {
		t.Fatalf("parseAccounts() error = %v", err)
	}
	if len(accounts) != 1 {
		t.Errorf("parseAccounts() = %d accounts, want 1", len(accounts))
	}
}

func TestParseAccounts_Malformed(t *testing.T) {
	cases := []string{
		"alice|hash|Alice",
		"|hash|Alice|Downtown",
		"alice||Alice|Downtown",
	}
	for _, raw := range cases {
		if _, err := parseAccounts(raw); err == nil {
			t.Errorf("parseAccounts(%q) should fail", raw)
		}
	}
}

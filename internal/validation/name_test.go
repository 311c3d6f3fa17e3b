package validation

import "testing"

func TestValidName(t *testing.T) {
	valid := []string{
		"admin",
		"a",
		"ledger.read",
		"session:revoke",
		"backup_code",
		"a_b-c.d:x2",
	}
	for _, name := range valid {
		if !ValidName(name) {
			t.Errorf("ValidName(%q) = false, quería true", name)
		}
	}

	invalid := []string{
		"",
		"Ledger.Read",
		"bad name",
		":leader",
		"trailer:",
		"semi;colon",
		"ñandú",
		"x123456789012345678901234567890123456789012345678901234567890123456789",
	}
	for _, name := range invalid {
		if ValidName(name) {
			t.Errorf("ValidName(%q) = true, quería false", name)
		}
	}
}

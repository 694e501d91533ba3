package migrate_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLedgerMigrationContainsConstraints(t *testing.T) {
	matches, err := filepath.Glob(filepath.Join("migrations", "*_create_vault_ledger_entries.sql"))
	if err != nil {
		t.Fatalf("glob migrations: %v", err)
	}
	if len(matches) == 0 {
		t.Fatalf("no ledger migration file found")
	}

	data, err := os.ReadFile(matches[0])
	if err != nil {
		t.Fatalf("read migration file: %v", err)
	}
	content := string(data)

	checks := []string{
		"CREATE TABLE IF NOT EXISTS vault_ledger_entries",
		"FOREIGN KEY (farm_id) REFERENCES farms(id) ON DELETE CASCADE",
		"ux_vault_ledger_entries_farm_seq",
		"CHECK (token_amount > 0)",
		"CHECK (balance_after >= 0)",
		"DROP TABLE IF EXISTS vault_ledger_entries",
	}

	for _, sub := range checks {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}

func TestReceiptMigrationEnforcesIdempotencyKey(t *testing.T) {
	matches, err := filepath.Glob(filepath.Join("migrations", "*_create_receipt_submissions.sql"))
	if err != nil {
		t.Fatalf("glob migrations: %v", err)
	}
	if len(matches) == 0 {
		t.Fatalf("no receipt migration file found")
	}

	data, err := os.ReadFile(matches[0])
	if err != nil {
		t.Fatalf("read migration file: %v", err)
	}
	content := string(data)

	checks := []string{
		"idempotency_key         VARCHAR(36) NOT NULL",
		"uq_receipt_idempotency_key",
		"CHECK (claimed_amount > 0)",
	}

	for _, sub := range checks {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}

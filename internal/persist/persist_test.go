package persist

import (
	"testing"

	"golang.org/x/crypto/bcrypt"
)

func TestValidatePassword(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("hunter2"), bcrypt.MinCost)
	if err != nil {
		t.Fatal(err)
	}
	if !ValidatePassword(string(hash), "hunter2") {
		t.Fatal("correct password rejected")
	}
	if ValidatePassword(string(hash), "hunter3") {
		t.Fatal("wrong password accepted")
	}
}

func TestRecordKeyFoldsCase(t *testing.T) {
	a := &PlayerRecord{Username: "  Alice "}
	b := &PlayerRecord{Username: "ALICE"}
	if a.Key() != b.Key() || a.Key() != "alice" {
		t.Fatalf("keys %q %q", a.Key(), b.Key())
	}
}

func TestMigrationsEmbedded(t *testing.T) {
	entries, err := migrations.ReadDir("migrations")
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) == 0 {
		t.Fatal("no migrations embedded")
	}
}

package kdf

import (
	"bytes"
	"testing"

	"github.com/sealchat/sealchat/pkg/types"
)

func TestDeriveDeterministic(t *testing.T) {
	a, err := Derive("hunter2", "salt-alice_alice_bob")
	if err != nil {
		t.Fatalf("Derive: %v", err)
	}
	b, err := Derive("hunter2", "salt-alice_alice_bob")
	if err != nil {
		t.Fatalf("Derive: %v", err)
	}
	if !bytes.Equal(a, b) {
		t.Fatal("same password and salt must derive the same key")
	}
	if len(a) != KeySize {
		t.Fatalf("derived key is %d bytes, want %d", len(a), KeySize)
	}
}

func TestDeriveSaltSeparation(t *testing.T) {
	a, err := Derive("hunter2", "salt-alice_alice_bob")
	if err != nil {
		t.Fatalf("Derive: %v", err)
	}
	b, err := Derive("hunter2", "salt-alice_alice_carol")
	if err != nil {
		t.Fatalf("Derive: %v", err)
	}
	if bytes.Equal(a, b) {
		t.Fatal("different salts must not derive the same key")
	}
}

func TestDerivePasswordSeparation(t *testing.T) {
	a, err := Derive("hunter2", "salt-alice_alice_bob")
	if err != nil {
		t.Fatalf("Derive: %v", err)
	}
	b, err := Derive("hunter3", "salt-alice_alice_bob")
	if err != nil {
		t.Fatalf("Derive: %v", err)
	}
	if bytes.Equal(a, b) {
		t.Fatal("different passwords must not derive the same key")
	}
}

func TestDeriveRejectsEmptyInputs(t *testing.T) {
	if _, err := Derive("", "salt"); err == nil {
		t.Fatal("empty password must be rejected")
	}
	if _, err := Derive("pw", ""); err == nil {
		t.Fatal("empty salt must be rejected")
	}
}

func TestWrapSalt(t *testing.T) {
	conv, err := types.NewConversationID("alice", "bob")
	if err != nil {
		t.Fatalf("NewConversationID: %v", err)
	}
	got := WrapSalt("alice", conv)
	want := "salt-alice_alice_bob"
	if got != want {
		t.Fatalf("WrapSalt = %q, want %q", got, want)
	}
}

package crypto

import (
	"bytes"
	"errors"
	"testing"
)

func TestNewDocumentKey_LengthAndRandomness(t *testing.T) {
	k1, err := NewDocumentKey()
	if err != nil {
		t.Fatalf("NewDocumentKey error: %v", err)
	}
	k2, err := NewDocumentKey()
	if err != nil {
		t.Fatalf("NewDocumentKey error: %v", err)
	}

	if len(k1.Bytes()) != KeySize {
		t.Fatalf("key length = %d, want %d", len(k1.Bytes()), KeySize)
	}
	if bytes.Equal(k1.Bytes(), k2.Bytes()) {
		t.Fatalf("expected random keys to differ")
	}
}

func TestDeriveDocumentKey_Deterministic(t *testing.T) {
	master := bytes.Repeat([]byte{0xAB}, KeySize)

	k1, err := DeriveDocumentKey(master, "project-alpha")
	if err != nil {
		t.Fatalf("DeriveDocumentKey error: %v", err)
	}
	k2, err := DeriveDocumentKey(master, "project-alpha")
	if err != nil {
		t.Fatalf("DeriveDocumentKey error: %v", err)
	}

	if !bytes.Equal(k1.Bytes(), k2.Bytes()) {
		t.Fatalf("expected identical keys for identical (master, context)")
	}
}

func TestDeriveDocumentKey_DomainSeparation(t *testing.T) {
	master := bytes.Repeat([]byte{0xAB}, KeySize)
	otherMaster := bytes.Repeat([]byte{0xAC}, KeySize)

	base, _ := DeriveDocumentKey(master, "project-alpha")
	otherContext, _ := DeriveDocumentKey(master, "project-beta")
	otherSecret, _ := DeriveDocumentKey(otherMaster, "project-alpha")

	if bytes.Equal(base.Bytes(), otherContext.Bytes()) {
		t.Fatalf("expected different keys for different contexts")
	}
	if bytes.Equal(base.Bytes(), otherSecret.Bytes()) {
		t.Fatalf("expected different keys for different masters")
	}
}

func TestDocumentKeyFromBytes_CopiesAndValidates(t *testing.T) {
	src := bytes.Repeat([]byte{0x11}, KeySize)

	k, err := DocumentKeyFromBytes(src)
	if err != nil {
		t.Fatalf("DocumentKeyFromBytes error: %v", err)
	}

	// Mutating the source must not affect the key.
	src[0] = 0xFF
	if k.Bytes()[0] != 0x11 {
		t.Fatalf("expected key to own an independent copy")
	}

	if _, err := DocumentKeyFromBytes([]byte("too short")); !errors.Is(err, ErrInvalidKeySize) {
		t.Fatalf("expected ErrInvalidKeySize, got %v", err)
	}
}

func TestDocumentKey_DestroyZeroes(t *testing.T) {
	k, err := NewDocumentKey()
	if err != nil {
		t.Fatalf("NewDocumentKey error: %v", err)
	}

	buf := k.Bytes()
	k.Destroy()

	if k.Bytes() != nil {
		t.Fatalf("expected nil bytes after Destroy")
	}
	for i, b := range buf {
		if b != 0 {
			t.Fatalf("byte %d not zeroed after Destroy", i)
		}
	}
}

package billing

import (
	"errors"
	"regexp"
	"strings"
	"testing"
	"time"
)

func TestGenerator_InvoiceNumber(t *testing.T) {
	g := NewGenerator()
	at := time.Date(2024, 11, 30, 23, 0, 0, 0, time.UTC)

	number, err := g.InvoiceNumber("INV", at)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !regexp.MustCompile(`^INV-2411-[A-Z0-9]{4}$`).MatchString(number) {
		t.Fatalf("unexpected invoice number %q", number)
	}
}

func TestGenerator_InvoiceNumberUsesUTCMonth(t *testing.T) {
	g := NewGeneratorWithSource(func(string, int) (string, error) { return "AB12", nil })
	loc := time.FixedZone("UTC+3", 3*60*60)
	at := time.Date(2025, 1, 1, 1, 0, 0, 0, loc)

	number, err := g.InvoiceNumber("DT", at)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if number != "DT-2412-AB12" {
		t.Fatalf("expected DT-2412-AB12, got %q", number)
	}
}

func TestGenerator_InvitationCode(t *testing.T) {
	g := NewGenerator()
	seen := make(map[string]struct{})
	for i := 0; i < 200; i++ {
		code, err := g.InvitationCode(8)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(code) != 8 {
			t.Fatalf("expected 8 characters, got %q", code)
		}
		for _, r := range code {
			if !strings.ContainsRune(InvitationAlphabet, r) {
				t.Fatalf("code %q contains %q outside alphabet", code, r)
			}
		}
		seen[code] = struct{}{}
	}
	if len(seen) < 195 {
		t.Fatalf("expected codes to be mostly unique, got %d distinct of 200", len(seen))
	}
}

func TestGenerator_SourceError(t *testing.T) {
	boom := errors.New("entropy")
	g := NewGeneratorWithSource(func(string, int) (string, error) { return "", boom })
	if _, err := g.InvitationCode(8); !errors.Is(err, boom) {
		t.Fatalf("expected wrapped source error, got %v", err)
	}
	if _, err := g.InvoiceNumber("INV", time.Now()); !errors.Is(err, boom) {
		t.Fatalf("expected wrapped source error, got %v", err)
	}
}

func TestNormalizeCode(t *testing.T) {
	if got := NormalizeCode("  ab3k-x9 "); got != "AB3K-X9" {
		t.Fatalf("unexpected normalized code %q", got)
	}
}

func TestCryptoRandomRejectsBadLength(t *testing.T) {
	if _, err := CryptoRandom(InvitationAlphabet, 0); err == nil {
		t.Fatal("expected error for zero length")
	}
}

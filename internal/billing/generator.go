package billing

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"
	"time"
)

const (
	// Invitation codes omit 0, O, 1 and I.
	InvitationAlphabet    = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	InvoiceSuffixAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	InvoiceSuffixLength   = 4
)

// RandomSource returns n characters drawn from alphabet.
type RandomSource func(alphabet string, n int) (string, error)

type Generator struct {
	random RandomSource
}

func NewGenerator() *Generator {
	return &Generator{random: CryptoRandom}
}

func NewGeneratorWithSource(src RandomSource) *Generator {
	return &Generator{random: src}
}

// InvoiceNumber builds PREFIX-YYMM-RAND4 using the UTC month of at.
func (g *Generator) InvoiceNumber(prefix string, at time.Time) (string, error) {
	suffix, err := g.random(InvoiceSuffixAlphabet, InvoiceSuffixLength)
	if err != nil {
		return "", fmt.Errorf("generate invoice suffix: %w", err)
	}
	return fmt.Sprintf("%s-%s-%s", prefix, at.UTC().Format("0601"), suffix), nil
}

func (g *Generator) InvitationCode(length int) (string, error) {
	code, err := g.random(InvitationAlphabet, length)
	if err != nil {
		return "", fmt.Errorf("generate invitation code: %w", err)
	}
	return code, nil
}

// NormalizeCode makes invitation code comparison case-insensitive.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

func CryptoRandom(alphabet string, n int) (string, error) {
	if n <= 0 || alphabet == "" {
		return "", fmt.Errorf("invalid random request: length %d", n)
	}
	limit := big.NewInt(int64(len(alphabet)))
	var b strings.Builder
	b.Grow(n)
	for i := 0; i < n; i++ {
		idx, err := rand.Int(rand.Reader, limit)
		if err != nil {
			return "", err
		}
		b.WriteByte(alphabet[idx.Int64()])
	}
	return b.String(), nil
}

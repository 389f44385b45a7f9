package xid

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"time"

	"github.com/google/uuid"
)

func New(prefix string) string {
	id, err := uuid.NewRandom()
	if err != nil {
		return fmt.Sprintf("%s-%d", prefix, time.Now().UnixNano())
	}
	return fmt.Sprintf("%s-%s", prefix, id.String())
}

// ReceiptID formats the printable sale number, e.g. SALE-20251018143005-417.
func ReceiptID(at time.Time) string {
	suffix := int64(100)
	if n, err := rand.Int(rand.Reader, big.NewInt(900)); err == nil {
		suffix += n.Int64()
	} else {
		suffix += at.UnixNano() % 900
	}
	return fmt.Sprintf("SALE-%s-%d", at.UTC().Format("20060102150405"), suffix)
}

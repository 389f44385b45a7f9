package xid

import (
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewIsPrefixedAndUnique(t *testing.T) {
	a := New("sale")
	b := New("sale")

	assert.True(t, strings.HasPrefix(a, "sale-"))
	assert.NotEqual(t, a, b)
}

func TestReceiptIDFormat(t *testing.T) {
	at := time.Date(2025, 10, 18, 14, 30, 5, 0, time.UTC)
	id := ReceiptID(at)

	require.Regexp(t, regexp.MustCompile(`^SALE-20251018143005-[1-9][0-9]{2}$`), id)
}

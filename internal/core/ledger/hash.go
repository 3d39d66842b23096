package ledger

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"

	"github.com/shopspring/decimal"
)

// Canonical hashing of ledger entries.
//
// The hash input is the JSON serialization of a fixed-order object
// {prevHash, accountId, walletSeq, reference, entryType, amount, description}
// and must be byte-for-byte reproducible by external auditors. A generic JSON
// encoder is deliberately not used here: key order, the null-vs-omitted
// distinction and the absence of HTML escaping are all part of the contract.

// HashInput carries the hashable fields of an entry. PrevHash and Description
// serialize as JSON null when unset.
type HashInput struct {
	PrevHash    string // empty means null
	AccountID   string
	WalletSeq   int64
	Reference   string
	EntryType   EntryType
	Amount      decimal.Decimal
	Description string // empty means null
}

// HashInputOf extracts the hashable fields of an entry.
func HashInputOf(e *Entry) HashInput {
	return HashInput{
		PrevHash:    e.PrevHash,
		AccountID:   e.AccountID,
		WalletSeq:   e.WalletSeq,
		Reference:   e.Reference,
		EntryType:   e.EntryType,
		Amount:      e.Amount,
		Description: e.Description,
	}
}

// CanonicalJSON renders the exact byte sequence that is hashed.
func (in HashInput) CanonicalJSON() []byte {
	buf := make([]byte, 0, 192)
	buf = append(buf, `{"prevHash":`...)
	buf = appendNullableString(buf, in.PrevHash)
	buf = append(buf, `,"accountId":`...)
	buf = appendJSONString(buf, in.AccountID)
	buf = append(buf, `,"walletSeq":`...)
	buf = strconv.AppendInt(buf, in.WalletSeq, 10)
	buf = append(buf, `,"reference":`...)
	buf = appendJSONString(buf, in.Reference)
	buf = append(buf, `,"entryType":`...)
	buf = appendJSONString(buf, string(in.EntryType))
	buf = append(buf, `,"amount":`...)
	buf = appendJSONString(buf, CanonicalAmount(in.Amount))
	buf = append(buf, `,"description":`...)
	buf = appendNullableString(buf, in.Description)
	buf = append(buf, '}')
	return buf
}

// Hash computes the canonical entry hash: lowercase hex SHA-256 of the
// canonical JSON, 64 characters.
func (in HashInput) Hash() string {
	sum := sha256.Sum256(in.CanonicalJSON())
	return hex.EncodeToString(sum[:])
}

// CanonicalAmount renders a decimal at exactly four fractional digits,
// e.g. "1000.0000".
func CanonicalAmount(d decimal.Decimal) string {
	return d.StringFixed(AmountScale)
}

func appendNullableString(buf []byte, s string) []byte {
	if s == "" {
		return append(buf, "null"...)
	}
	return appendJSONString(buf, s)
}

const hexDigits = "0123456789abcdef"

// appendJSONString writes s as a JSON string literal. Escaping matches the
// minimal form produced by ECMAScript JSON.stringify: quote, backslash and
// control characters only, with short escapes for \b \t \n \f \r.
func appendJSONString(buf []byte, s string) []byte {
	buf = append(buf, '"')
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '"':
			buf = append(buf, '\\', '"')
		case c == '\\':
			buf = append(buf, '\\', '\\')
		case c == '\b':
			buf = append(buf, '\\', 'b')
		case c == '\t':
			buf = append(buf, '\\', 't')
		case c == '\n':
			buf = append(buf, '\\', 'n')
		case c == '\f':
			buf = append(buf, '\\', 'f')
		case c == '\r':
			buf = append(buf, '\\', 'r')
		case c < 0x20:
			buf = append(buf, '\\', 'u', '0', '0', hexDigits[c>>4], hexDigits[c&0xf])
		default:
			buf = append(buf, c)
		}
	}
	return append(buf, '"')
}

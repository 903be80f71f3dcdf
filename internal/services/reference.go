package services

import (
	"errors"
	"regexp"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

const referencePrefix = "ORDEN"

var reReference = regexp.MustCompile(`^` + referencePrefix + `-(\d+)-`)

var ErrBadReference = errors.New("order reference does not carry a sale id")

// BuildReference returns the provider-facing order number for a sale:
// ORDEN-<saleID>-<13 hex chars>. The suffix keeps retries of the same sale
// unique on the provider side.
func BuildReference(saleID int64) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:13]
	return referencePrefix + "-" + strconv.FormatInt(saleID, 10) + "-" + suffix
}

// ParseReference recovers the sale id from an order reference.
func ParseReference(ref string) (int64, error) {
	m := reReference.FindStringSubmatch(strings.TrimSpace(ref))
	if m == nil {
		return 0, ErrBadReference
	}
	id, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil || id <= 0 {
		return 0, ErrBadReference
	}
	return id, nil
}

package model

import (
	"strings"

	"github.com/rotisserie/eris"
)

// Format is the vendor family a data root belongs to.
type Format string

const (
	FormatToyo    Format = "TOYO"
	FormatPNE     Format = "PNE"
	FormatUnknown Format = "UNKNOWN"
)

// ParseFormat resolves a user-supplied format hint. Version-specific names
// such as "toyo1" resolve to their family.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "":
		return FormatUnknown, nil
	case "toyo", "toyo1", "toyo2":
		return FormatToyo, nil
	case "pne":
		return FormatPNE, nil
	case "unknown":
		return FormatUnknown, nil
	default:
		return FormatUnknown, eris.Errorf("model: unknown format %q", s)
	}
}

// Variant identifies the concrete parser used for a channel.
type Variant string

const (
	VariantToyo1 Variant = "toyo1" // header carries PassedDate
	VariantToyo2 Variant = "toyo2"
	VariantPNE   Variant = "pne"
)

// Format returns the family the variant belongs to.
func (v Variant) Format() Format {
	switch v {
	case VariantToyo1, VariantToyo2:
		return FormatToyo
	case VariantPNE:
		return FormatPNE
	default:
		return FormatUnknown
	}
}

package model

import "fmt"

// Verdict is the outcome of judging whether an item belongs in a derived feed.
type Verdict int

// Possible verdicts. Unparseable records that the judge answered but the
// answer could not be interpreted.
const (
	VerdictUnparseable Verdict = iota
	VerdictInclude
	VerdictExclude
)

func (v Verdict) String() string {
	switch v {
	case VerdictInclude:
		return "include"
	case VerdictExclude:
		return "exclude"
	default:
		return "unparseable"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (v Verdict) MarshalText() ([]byte, error) {
	return []byte(v.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (v *Verdict) UnmarshalText(text []byte) error {
	switch string(text) {
	case "include":
		*v = VerdictInclude
	case "exclude":
		*v = VerdictExclude
	case "unparseable":
		*v = VerdictUnparseable
	default:
		return fmt.Errorf("unknown verdict %q", text)
	}
	return nil
}

// Judgement is a verdict plus what it cost to obtain.
type Judgement struct {
	Verdict Verdict `json:"verdict"`
	Cost    int     `json:"cost,omitempty"`
	Reason  string  `json:"reason,omitempty"`
}

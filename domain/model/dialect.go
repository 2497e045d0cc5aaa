package model

import (
	"fmt"
	"strings"
)

// QuotingPolicy controls how double quotes are interpreted when a line is split into fields.
type QuotingPolicy int

const (
	// PolicyMonocolumn treats the whole record as a single field
	PolicyMonocolumn QuotingPolicy = iota
	// PolicySimple splits on every delimiter occurrence; quotes are plain text
	PolicySimple
	// PolicyQuoted splits with the CSV quoting automaton, one record per line
	PolicyQuoted
	// PolicyQuotedRFC is PolicyQuoted where quoted fields may span several lines
	PolicyQuotedRFC
	// PolicyWhitespace splits on runs of the delimiter and ignores leading/trailing runs
	PolicyWhitespace
)

// policy name constants
const (
	policyMonocolumnStr = "monocolumn"
	policySimpleStr     = "simple"
	policyQuotedStr     = "quoted"
	policyQuotedRFCStr  = "quoted_rfc"
	policyWhitespaceStr = "whitespace"
)

// String returns the string representation of QuotingPolicy
func (p QuotingPolicy) String() string {
	switch p {
	case PolicyMonocolumn:
		return policyMonocolumnStr
	case PolicySimple:
		return policySimpleStr
	case PolicyQuoted:
		return policyQuotedStr
	case PolicyQuotedRFC:
		return policyQuotedRFCStr
	case PolicyWhitespace:
		return policyWhitespaceStr
	default:
		return policySimpleStr
	}
}

// IsQuoted reports whether the policy honors double quotes.
func (p QuotingPolicy) IsQuoted() bool {
	return p == PolicyQuoted || p == PolicyQuotedRFC
}

// ParseQuotingPolicy parses a policy name produced by QuotingPolicy.String.
func ParseQuotingPolicy(s string) (QuotingPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case policyMonocolumnStr:
		return PolicyMonocolumn, nil
	case policySimpleStr:
		return PolicySimple, nil
	case policyQuotedStr:
		return PolicyQuoted, nil
	case policyQuotedRFCStr, "rfc", "quoted-rfc":
		return PolicyQuotedRFC, nil
	case policyWhitespaceStr:
		return PolicyWhitespace, nil
	default:
		return PolicySimple, fmt.Errorf("unknown quoting policy: %q", s)
	}
}

// Dialect is a delimiter paired with a quoting policy.
type Dialect struct {
	// Delimiter separates fields. Meaningless for PolicyMonocolumn.
	Delimiter string
	// Policy is the quoting policy.
	Policy QuotingPolicy
}

// NewDialect create new Dialect.
func NewDialect(delimiter string, policy QuotingPolicy) Dialect {
	if policy == PolicyMonocolumn {
		delimiter = ""
	}
	return Dialect{Delimiter: delimiter, Policy: policy}
}

// Monocolumn is the dialect of files with one field per record.
func Monocolumn() Dialect {
	return Dialect{Policy: PolicyMonocolumn}
}

// IsRFC reports whether records may span multiple physical lines.
func (d Dialect) IsRFC() bool {
	return d.Policy == PolicyQuotedRFC
}

// Equal compare Dialect.
func (d Dialect) Equal(d2 Dialect) bool {
	if d.Policy != d2.Policy {
		return false
	}
	return d.Policy == PolicyMonocolumn || d.Delimiter == d2.Delimiter
}

// String returns a readable form such as `"," quoted`.
func (d Dialect) String() string {
	if d.Policy == PolicyMonocolumn {
		return d.Policy.String()
	}
	return fmt.Sprintf("%q %s", d.Delimiter, d.Policy)
}

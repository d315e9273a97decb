package secops

import (
	"regexp"
	"strings"
)

// ValueType classifies the kind of artifact a free-form value represents.
// It drives which query field the entity summary endpoint is addressed by.
type ValueType int

const (
	ValueTypeUnknown ValueType = iota
	ValueTypeIPv4
	ValueTypeMD5
	ValueTypeSHA1
	ValueTypeSHA256
	ValueTypeEmail
	ValueTypeMACAddress
	ValueTypeDomainName
	ValueTypeHostname
)

func (v ValueType) String() string {
	switch v {
	case ValueTypeIPv4:
		return "IPv4"
	case ValueTypeMD5:
		return "MD5"
	case ValueTypeSHA1:
		return "SHA1"
	case ValueTypeSHA256:
		return "SHA256"
	case ValueTypeEmail:
		return "Email"
	case ValueTypeMACAddress:
		return "MACAddress"
	case ValueTypeDomainName:
		return "DomainName"
	case ValueTypeHostname:
		return "Hostname"
	default:
		return "Unknown"
	}
}

// FieldPath returns the canonical UDM field path for value types the API
// addresses by field, or "" for types addressed by value type tag instead.
func (v ValueType) FieldPath() string {
	switch v {
	case ValueTypeIPv4:
		return "principal.ip"
	case ValueTypeMD5:
		return "target.file.md5"
	case ValueTypeSHA1:
		return "target.file.sha1"
	case ValueTypeSHA256:
		return "target.file.sha256"
	default:
		return ""
	}
}

// APIValue returns the Chronicle enum name for the value type, or "" for
// ValueTypeUnknown.
func (v ValueType) APIValue() string {
	switch v {
	case ValueTypeIPv4:
		return "ASSET_IP_ADDRESS"
	case ValueTypeMD5:
		return "HASH_MD5"
	case ValueTypeSHA1:
		return "HASH_SHA1"
	case ValueTypeSHA256:
		return "HASH_SHA256"
	case ValueTypeEmail:
		return "EMAIL"
	case ValueTypeMACAddress:
		return "MAC"
	case ValueTypeDomainName:
		return "DOMAIN_NAME"
	case ValueTypeHostname:
		return "HOSTNAME"
	default:
		return ""
	}
}

var (
	ipv4Pattern   = regexp.MustCompile(`^(?:(?:25[0-5]|2[0-4][0-9]|[01]?[0-9][0-9]?)\.){3}(?:25[0-5]|2[0-4][0-9]|[01]?[0-9][0-9]?)$`)
	md5Pattern    = regexp.MustCompile(`^[a-fA-F0-9]{32}$`)
	sha1Pattern   = regexp.MustCompile(`^[a-fA-F0-9]{40}$`)
	sha256Pattern = regexp.MustCompile(`^[a-fA-F0-9]{64}$`)
	macPattern    = regexp.MustCompile(`^(?:[0-9A-Fa-f]{2}[:-]){5}[0-9A-Fa-f]{2}$`)
	domainPattern = regexp.MustCompile(`^[A-Za-z0-9](?:[A-Za-z0-9-]*[A-Za-z0-9])?(?:\.[A-Za-z0-9](?:[A-Za-z0-9-]*[A-Za-z0-9])?)+$`)
)

// Classify maps a free-form value to its ValueType and the default UDM field
// path for entity lookups ("" when the type is addressed by value type tag).
// Matching is strict-precedence, first match wins: IPv4, MD5, SHA1, SHA256,
// email, MAC address, domain name, then hostname as the fallback for any
// remaining token without whitespace. Empty or whitespace-only input yields
// ValueTypeUnknown. Classify is pure and deterministic.
func Classify(value string) (ValueType, string) {
	if strings.TrimSpace(value) == "" {
		return ValueTypeUnknown, ""
	}

	switch {
	case ipv4Pattern.MatchString(value):
		return ValueTypeIPv4, ValueTypeIPv4.FieldPath()
	case md5Pattern.MatchString(value):
		return ValueTypeMD5, ValueTypeMD5.FieldPath()
	case sha1Pattern.MatchString(value):
		return ValueTypeSHA1, ValueTypeSHA1.FieldPath()
	case sha256Pattern.MatchString(value):
		return ValueTypeSHA256, ValueTypeSHA256.FieldPath()
	case isEmail(value):
		return ValueTypeEmail, ""
	case macPattern.MatchString(value):
		return ValueTypeMACAddress, ""
	case domainPattern.MatchString(value):
		return ValueTypeDomainName, ""
	case !strings.ContainsAny(value, " \t\n\r"):
		return ValueTypeHostname, ""
	default:
		return ValueTypeUnknown, ""
	}
}

// isEmail reports whether value has exactly one "@" with a non-empty local
// part and a domain part containing at least one dot.
func isEmail(value string) bool {
	if strings.ContainsAny(value, " \t\n\r") {
		return false
	}
	at := strings.IndexByte(value, '@')
	if at <= 0 || at != strings.LastIndexByte(value, '@') {
		return false
	}
	domain := value[at+1:]
	dot := strings.IndexByte(domain, '.')
	return dot > 0 && dot < len(domain)-1
}

package services

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"unicode"
)

// ReferralUpdateType switches a submission into referral-update mode.
const ReferralUpdateType = "referral_update"

// Whitespace here is the ECMAScript set: ASCII space and controls, every Unicode
// space separator, the line and paragraph separators and the byte order mark.
var emailPattern = regexp.MustCompile(`^[^\s\v\p{Z}\x{FEFF}@]+@[^\s\v\p{Z}\x{FEFF}@]+\.[^\s\v\p{Z}\x{FEFF}@]+$`)

// knownFields are read into Submission; every other top-level key is folded into Meta.
var knownFields = map[string]struct{}{
	"type":           {},
	"email":          {},
	"role":           {},
	"useCase":        {},
	"challenge":      {},
	"count":          {},
	"company":        {},
	"meta":           {},
	"referralSource": {},
}

// Submission is a decoded lead request with every scalar already coerced to a string.
type Submission struct {
	Type           string
	Email          string
	Role           string
	UseCase        string
	Challenge      string
	Count          string
	Company        string
	ReferralSource string
	Meta           map[string]any
}

// Provenance carries request details captured server-side.
type Provenance struct {
	UserAgent string
	IP        string
}

// IsValidEmail reports whether s has the local@domain.tld shape accepted for leads.
func IsValidEmail(s string) bool {
	return emailPattern.MatchString(s)
}

// NormalizeEmail trims surrounding whitespace and lower-cases the address.
func NormalizeEmail(s string) string {
	return strings.ToLower(strings.TrimFunc(s, isEmailSpace))
}

func isEmailSpace(r rune) bool {
	switch r {
	case '\t', '\n', '\v', '\f', '\r', '\ufeff':
		return true
	}
	return unicode.In(r, unicode.Z)
}

// ParseSubmission reads a decoded JSON object. Missing or null fields become "", and
// null-valued meta entries are dropped at every depth. Unknown top-level keys are kept
// in Meta unless meta already has the same key.
func ParseSubmission(payload map[string]any) Submission {
	sub := Submission{
		Type:           coerceString(payload["type"]),
		Email:          coerceString(payload["email"]),
		Role:           coerceString(payload["role"]),
		UseCase:        coerceString(payload["useCase"]),
		Challenge:      coerceString(payload["challenge"]),
		Count:          coerceString(payload["count"]),
		Company:        coerceString(payload["company"]),
		ReferralSource: coerceString(payload["referralSource"]),
		Meta:           map[string]any{},
	}

	for key, value := range payload {
		if _, known := knownFields[key]; known {
			continue
		}
		if pruned, keep := pruneNulls(value); keep {
			sub.Meta[key] = pruned
		}
	}

	if meta, ok := payload["meta"].(map[string]any); ok {
		for key, value := range meta {
			if pruned, keep := pruneNulls(value); keep {
				sub.Meta[key] = pruned
			}
		}
	}

	return sub
}

// pruneNulls deep-copies v without null map entries. The second result is false when v
// itself is null.
func pruneNulls(v any) (any, bool) {
	switch val := v.(type) {
	case nil:
		return nil, false
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			if pruned, keep := pruneNulls(item); keep {
				out[k] = pruned
			}
		}
		return out, true
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			pruned, _ := pruneNulls(item)
			out[i] = pruned
		}
		return out, true
	default:
		return val, true
	}
}

func coerceString(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case bool:
		return strconv.FormatBool(val)
	case float64:
		return formatNumber(val)
	case json.Number:
		return val.String()
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case map[string]any, []any:
		return compactJSON(val)
	default:
		return fmt.Sprint(val)
	}
}

func formatNumber(f float64) string {
	abs := math.Abs(f)
	if abs != 0 && (abs >= 1e21 || abs < 1e-6) {
		out := strconv.FormatFloat(f, 'g', -1, 64)
		out = strings.Replace(out, "e-0", "e-", 1)
		return strings.Replace(out, "e+0", "e+", 1)
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func compactJSON(v any) string {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return ""
	}
	return strings.TrimSuffix(buf.String(), "\n")
}

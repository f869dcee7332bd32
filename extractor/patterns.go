package extractor

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/btcsuite/btcd/btcutil/base58"
	"github.com/btcsuite/btcd/btcutil/bech32"
	"golang.org/x/crypto/sha3"

	"github.com/pacmancrawl/pacman"
)

// pattern pairs a compiled regexp with the per-kind normalizer that
// validates and canonicalizes a raw match. A normalizer returning ok=false
// discards the match, per spec.md's "matches failing validation are
// discarded."
type pattern struct {
	kind      pacman.EntityKind
	re        *regexp.Regexp
	normalize func(raw string) (string, bool)
}

// patternBank is built once; each *regexp.Regexp is compiled a single
// time and shared across every Extract call.
var patternBank = []pattern{
	{pacman.EntityEmail, regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`), normalizeEmail},
	{pacman.EntityPhoneIntl, regexp.MustCompile(`\+[1-9]\d{1,3}[\s().\-]?\d{2,4}[\s().\-]?\d{2,4}[\s().\-]?\d{0,4}`), normalizePhone},
	{pacman.EntityPhoneUS, regexp.MustCompile(`\(?\b[2-9]\d{2}\)?[\s.\-]?\d{3}[\s.\-]?\d{4}\b`), normalizePhone},
	{pacman.EntityPhoneUK, regexp.MustCompile(`\b0[1-9]\d{1,4}[\s.\-]?\d{3,8}\b`), normalizePhone},
	{pacman.EntityPhoneEU, regexp.MustCompile(`\+3[0-9][\s.\-]?\d{2,4}[\s.\-]?\d{2,4}[\s.\-]?\d{0,4}`), normalizePhone},
	{pacman.EntityLEI, regexp.MustCompile(`\b[0-9A-Z]{18}\d{2}\b`), normalizeLEI},
	{pacman.EntityIBAN, regexp.MustCompile(`\b[A-Z]{2}\d{2}[\sA-Z0-9]{11,30}\b`), normalizeIBAN},
	{pacman.EntitySWIFT, regexp.MustCompile(`\b[A-Z]{6}[A-Z0-9]{2}(?:[A-Z0-9]{3})?\b`), normalizeSWIFT},
	{pacman.EntityVAT, regexp.MustCompile(`\b[A-Z]{2}\d{8,12}\b`), normalizePassthroughUpper},
	{pacman.EntityIMO, regexp.MustCompile(`\bIMO\s?\d{7}\b`), normalizeIMO},
	{pacman.EntityMMSI, regexp.MustCompile(`\b\d{9}\b`), normalizeMMSI},
	{pacman.EntityISIN, regexp.MustCompile(`\b[A-Z]{2}[A-Z0-9]{9}\d\b`), normalizeISIN},
	{pacman.EntityDUNS, regexp.MustCompile(`\b\d{2}-\d{3}-\d{4}\b`), normalizeDigitsOnly},
	{pacman.EntityUKCRN, regexp.MustCompile(`\b(?:[A-Z]{2})?\d{6,8}\b`), normalizePassthroughUpper},
	{pacman.EntityDEHRB, regexp.MustCompile(`\bHRB\s?\d{1,6}\b`), normalizePassthroughUpper},
	{pacman.EntityFRSIREN, regexp.MustCompile(`\b\d{3}\s?\d{3}\s?\d{3}\b`), normalizeSIREN},
	{pacman.EntityBTC, regexp.MustCompile(`\b[13][a-km-zA-HJ-NP-Z1-9]{25,34}\b`), normalizeBTCLegacy},
	{pacman.EntityBTCBech32, regexp.MustCompile(`\bbc1[a-z0-9]{25,62}\b`), normalizeBech32},
	{pacman.EntityETH, regexp.MustCompile(`\b0x[0-9a-fA-F]{40}\b`), normalizeETH},
	{pacman.EntityLTC, regexp.MustCompile(`\b[LM3][a-km-zA-HJ-NP-Z1-9]{25,34}\b`), normalizeBTCLegacy},
	{pacman.EntityXRP, regexp.MustCompile(`\br[0-9a-zA-Z]{24,34}\b`), normalizePassthrough},
	{pacman.EntityXMR, regexp.MustCompile(`\b4[0-9AB][1-9A-HJ-NP-Za-km-z]{93}\b`), normalizePassthrough},
}

// extractPatterns applies every compiled pattern to text, returning unique
// validated matches grouped by kind. Order within a kind follows first
// occurrence in text.
func extractPatterns(text string) map[pacman.EntityKind][]string {
	out := map[pacman.EntityKind][]string{}
	seen := map[pacman.EntityKind]map[string]bool{}

	for _, p := range patternBank {
		matches := safeCall(func() []string { return p.re.FindAllString(text, -1) })
		for _, raw := range matches {
			norm, ok := safeNormalize(p.normalize, raw)
			if !ok {
				continue
			}
			if seen[p.kind] == nil {
				seen[p.kind] = map[string]bool{}
			}
			if seen[p.kind][norm] {
				continue
			}
			seen[p.kind][norm] = true
			out[p.kind] = append(out[p.kind], norm)
		}
	}
	return out
}

// safeNormalize recovers a panic from a single pattern's normalize call, so
// one malformed match only discards itself rather than the whole pattern's
// kind (which safeCall, wrapping the entire extractPatterns call in
// Extract, would otherwise do).
func safeNormalize(normalize func(string) (string, bool), raw string) (norm string, ok bool) {
	defer func() {
		if recover() != nil {
			norm, ok = "", false
		}
	}()
	return normalize(raw)
}

func normalizeEmail(raw string) (string, bool) {
	return strings.ToLower(raw), true
}

func normalizePhone(raw string) (string, bool) {
	var sb strings.Builder
	for i, r := range raw {
		if r == '+' && i == 0 {
			sb.WriteRune(r)
			continue
		}
		if r >= '0' && r <= '9' {
			sb.WriteRune(r)
		}
	}
	digits := sb.String()
	trimmed := strings.TrimPrefix(digits, "+")
	if len(trimmed) < 7 {
		return "", false
	}
	return digits, true
}

func normalizePassthrough(raw string) (string, bool) { return raw, true }

func normalizePassthroughUpper(raw string) (string, bool) { return strings.ToUpper(raw), true }

func normalizeDigitsOnly(raw string) (string, bool) {
	return strings.ReplaceAll(raw, "-", ""), true
}

func normalizeLEI(raw string) (string, bool) {
	return strings.ToUpper(raw), true
}

func normalizeSWIFT(raw string) (string, bool) {
	return strings.ToUpper(raw), true
}

func normalizeIMO(raw string) (string, bool) {
	digits := regexp.MustCompile(`\d{7}`).FindString(raw)
	if digits == "" {
		return "", false
	}
	// IMO check digit: sum of d1..d6 * (7..2) mod 10 == d7.
	sum := 0
	for i := 0; i < 6; i++ {
		d := int(digits[i] - '0')
		sum += d * (7 - i)
	}
	check := sum % 10
	if check != int(digits[6]-'0') {
		return "", false
	}
	return "IMO" + digits, true
}

func normalizeMMSI(raw string) (string, bool) {
	if len(raw) != 9 {
		return "", false
	}
	return raw, true
}

func normalizeISIN(raw string) (string, bool) {
	raw = strings.ToUpper(raw)
	if !isinChecksumValid(raw) {
		return "", false
	}
	return raw, true
}

func normalizeSIREN(raw string) (string, bool) {
	digits := strings.ReplaceAll(raw, " ", "")
	if len(digits) != 9 {
		return "", false
	}
	if !luhnValid(digits) {
		return "", false
	}
	return digits, true
}

// normalizeIBAN uppercases, strips whitespace, and validates the ISO 7064
// mod-97 checksum: move the first four characters to the end, convert
// letters to numbers (A=10..Z=35), and the resulting numeral string must
// be congruent to 1 mod 97.
func normalizeIBAN(raw string) (string, bool) {
	iban := strings.ToUpper(strings.ReplaceAll(raw, " ", ""))
	if len(iban) < 15 || len(iban) > 34 {
		return "", false
	}
	rearranged := iban[4:] + iban[:4]

	var numeral strings.Builder
	for _, r := range rearranged {
		switch {
		case r >= '0' && r <= '9':
			numeral.WriteRune(r)
		case r >= 'A' && r <= 'Z':
			numeral.WriteString(strconv.Itoa(int(r-'A') + 10))
		default:
			return "", false
		}
	}

	if mod97(numeral.String()) != 1 {
		return "", false
	}
	return iban, true
}

// mod97 computes numeral mod 97 digit-by-digit, since the numeral string
// is too long to fit in a machine int for long IBANs.
func mod97(numeral string) int {
	rem := 0
	for _, r := range numeral {
		rem = (rem*10 + int(r-'0')) % 97
	}
	return rem
}

func isinChecksumValid(isin string) bool {
	if len(isin) != 12 {
		return false
	}
	var digits strings.Builder
	for _, r := range isin[:11] {
		switch {
		case r >= '0' && r <= '9':
			digits.WriteRune(r)
		case r >= 'A' && r <= 'Z':
			digits.WriteString(strconv.Itoa(int(r-'A') + 10))
		default:
			return false
		}
	}
	if !luhnValid(digits.String() + string(isin[11]))  {
		return false
	}
	return true
}

func luhnValid(s string) bool {
	sum := 0
	alt := false
	for i := len(s) - 1; i >= 0; i-- {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
		d := int(s[i] - '0')
		if alt {
			d *= 2
			if d > 9 {
				d -= 9
			}
		}
		sum += d
		alt = !alt
	}
	return sum%10 == 0
}

// normalizeBTCLegacy validates a base58check-encoded legacy BTC/LTC
// address: CheckDecode splits payload from its 4-byte checksum and
// confirms double-SHA256(payload) matches before returning.
func normalizeBTCLegacy(raw string) (string, bool) {
	_, _, err := base58.CheckDecode(raw)
	return raw, err == nil
}

// normalizeBech32 validates the BIP-173 bech32 checksum (and the "bc1"
// human-readable prefix) via btcutil's bech32 decoder.
func normalizeBech32(raw string) (string, bool) {
	hrp, _, err := bech32.Decode(raw)
	if err != nil || !strings.EqualFold(hrp, "bc") {
		return "", false
	}
	return raw, true
}

// normalizeETH validates (and, when the input is all-lowercase or
// all-uppercase, leaves uncomputed) an EIP-55 mixed-case checksum address;
// an address that already carries mixed case must match the Keccak-256
// derived checksum exactly, or it is discarded as a likely corrupted
// match.
func normalizeETH(raw string) (string, bool) {
	body := raw[2:]
	hasLower := strings.ToLower(body) != body
	hasUpper := strings.ToUpper(body) != body
	if hasLower && hasUpper {
		if eip55Checksum(body) != body {
			return "", false
		}
	}
	return "0x" + eip55Checksum(body), true
}

func eip55Checksum(addr string) string {
	lower := strings.ToLower(addr)
	hash := sha3.NewLegacyKeccak256()
	hash.Write([]byte(lower))
	digest := hash.Sum(nil)

	var sb strings.Builder
	for i, c := range lower {
		if c >= '0' && c <= '9' {
			sb.WriteRune(c)
			continue
		}
		byteIdx := i / 2
		var nibble byte
		if i%2 == 0 {
			nibble = digest[byteIdx] >> 4
		} else {
			nibble = digest[byteIdx] & 0x0f
		}
		if nibble >= 8 {
			sb.WriteRune(c - 32) // uppercase
		} else {
			sb.WriteRune(c)
		}
	}
	return sb.String()
}

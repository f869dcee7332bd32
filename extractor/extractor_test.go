package extractor

import (
	"testing"

	"github.com/pacmancrawl/pacman"
)

func TestExtractEmail(t *testing.T) {
	entities := extractPatterns("Contact us at info@example.com for details.")
	if got := entities[pacman.EntityEmail]; len(got) != 1 || got[0] != "info@example.com" {
		t.Errorf("entities[EMAIL] = %v, want [info@example.com]", got)
	}
}

func TestExtractIBANValidatesChecksum(t *testing.T) {
	// GB29 NWBK 6016 1331 9268 19 is a well-known valid test IBAN.
	entities := extractPatterns("Wire to GB29NWBK60161331926819 please.")
	got := entities[pacman.EntityIBAN]
	if len(got) != 1 || got[0] != "GB29NWBK60161331926819" {
		t.Errorf("entities[IBAN] = %v, want [GB29NWBK60161331926819]", got)
	}
}

func TestExtractIBANRejectsBadChecksum(t *testing.T) {
	entities := extractPatterns("Wire to GB00NWBK60161331926819 please.")
	if got := entities[pacman.EntityIBAN]; len(got) != 0 {
		t.Errorf("entities[IBAN] = %v, want none (bad checksum)", got)
	}
}

func TestExtractETHChecksumAddress(t *testing.T) {
	// A well-known EIP-55 checksummed test address.
	text := "Send to 0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed now."
	entities := extractPatterns(text)
	if got := entities[pacman.EntityETH]; len(got) != 1 {
		t.Errorf("entities[ETH] = %v, want exactly one match", got)
	}
}

func TestExtractIsDeterministic(t *testing.T) {
	text := "Email a@b.com and b@c.com; call +1 415 555 0100."
	first := extractPatterns(text)
	second := extractPatterns(text)
	if len(first[pacman.EntityEmail]) != len(second[pacman.EntityEmail]) {
		t.Error("extractPatterns is not deterministic across calls")
	}
}

func TestScanTripwires(t *testing.T) {
	hits := scanTripwires("The report references OFAC sanctions directly.")
	if len(hits) == 0 {
		t.Fatal("expected at least one tripwire hit for OFAC")
	}
	found := false
	for _, h := range hits {
		if h.Category == pacman.CategorySanctions {
			found = true
		}
	}
	if !found {
		t.Error("expected a SANCTIONS category hit")
	}
}

func TestExtractPersonsRequiresConfidence(t *testing.T) {
	names := extractPersons("CEO John Smith announced the merger today.")
	found := false
	for _, n := range names {
		if n == "John Smith" {
			found = true
		}
	}
	if !found {
		t.Errorf("expected John Smith to be extracted, got %v", names)
	}
}

func TestExtractCompaniesRequiresDesignator(t *testing.T) {
	companies := extractCompanies("Acme Robotics Ltd announced new funding from Baker Holdings LLC.")
	if len(companies) < 2 {
		t.Errorf("expected at least 2 company candidates, got %v", companies)
	}
}

func TestExtractOutlinksDropsInternalAndTracking(t *testing.T) {
	links := []pacman.HTMLLink{
		{Href: "https://example.com/about", Internal: true},
		{Href: "https://partner.org/page?utm_source=x&keep=1", Internal: false},
		{Href: "https://partner.org/page?keep=1&utm_source=x", Internal: false},
	}
	out := ExtractOutlinks(links)
	if len(out) != 1 {
		t.Fatalf("got %v, want exactly one deduplicated outlink", out)
	}
	if out[0] != "https://partner.org/page?keep=1" {
		t.Errorf("got %q, want tracking params stripped", out[0])
	}
}

func TestClassifyTierSocialProfile(t *testing.T) {
	u, _ := pacman.ParseURL("https://linkedin.com/in/someone")
	if tier := ClassifyTier(u, 0, 5); tier != pacman.TierExtract {
		t.Errorf("ClassifyTier = %v, want TierExtract for a social profile", tier)
	}
}

func TestClassifyTierBeyondMaxDepth(t *testing.T) {
	u, _ := pacman.ParseURL("https://example.com/deep/page")
	if tier := ClassifyTier(u, 6, 5); tier != pacman.TierURLOnly {
		t.Errorf("ClassifyTier = %v, want TierURLOnly beyond max depth", tier)
	}
}

func TestExtractPopulatesContentHashAndEntities(t *testing.T) {
	e := New()
	page := &pacman.Page{Text: "Contact info@example.com about OFAC sanctions."}
	e.Extract(page, nil)

	if page.ContentHash == "" {
		t.Error("expected a non-empty content hash")
	}
	if len(page.Entities[pacman.EntityEmail]) != 1 {
		t.Errorf("expected one email entity, got %v", page.Entities[pacman.EntityEmail])
	}
	if len(page.Tripwires) == 0 {
		t.Error("expected at least one tripwire hit")
	}
}

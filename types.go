// Package pacman holds the shared data model, URL handling, and
// configuration used by every component of the crawler: the Partitioner
// (package partition), the Worker Scheduler (package scheduler), the Domain
// Pipeline (package pipeline), the Extractor (package extractor), and the
// Sink (package sink).
package pacman

import "time"

// ExtractionTier classifies a URL, before fetching, into how much work the
// Domain Pipeline should do with it.
type ExtractionTier int

const (
	// TierFull means: fetch, parse, extract entities, and follow outlinks.
	TierFull ExtractionTier = iota
	// TierExtract means: fetch and extract entities, but do not enqueue
	// any outlinks found on the page.
	TierExtract
	// TierURLOnly means: record the URL and stop; no fetch is made.
	TierURLOnly
	// TierSkip means: drop the URL entirely.
	TierSkip
)

func (t ExtractionTier) String() string {
	switch t {
	case TierFull:
		return "FULL"
	case TierExtract:
		return "EXTRACT"
	case TierURLOnly:
		return "URL_ONLY"
	case TierSkip:
		return "SKIP"
	default:
		return "UNKNOWN"
	}
}

// FetchSource identifies which fetch tier produced a Page's content. A
// successful Page carries one of four values, resolving the ambiguity spec.md notes between
// this and a "crawler_a"-style source tag: the four-tier taxonomy wins.
type FetchSource string

const (
	SourceLive         FetchSource = "live"
	SourceArchiveIndex FetchSource = "archive_index"
	SourceArchiveLive  FetchSource = "archive_live"
	SourceRender       FetchSource = "render"
	// sourceFailed is used only for the optional fetch-failure record; it
	// never appears as the `source` field of a successful Page.
	sourceFailed FetchSource = "failed"
)

// TripwireCategory is one of the curated risk categories a tripwire term
// can belong to.
type TripwireCategory string

const (
	CategorySanctions        TripwireCategory = "SANCTIONS"
	CategoryPEP              TripwireCategory = "PEP"
	CategoryFraud            TripwireCategory = "FRAUD"
	CategoryMoneyLaundering  TripwireCategory = "MONEY_LAUNDERING"
	CategoryCorruption       TripwireCategory = "CORRUPTION"
	CategoryLitigation       TripwireCategory = "LITIGATION"
)

// EntityKind is one of the fixed pattern-extraction kinds PACMAN produces.
type EntityKind string

const (
	EntityEmail      EntityKind = "EMAIL"
	EntityPhoneIntl  EntityKind = "PHONE_INTL"
	EntityPhoneUS    EntityKind = "PHONE_US"
	EntityPhoneUK    EntityKind = "PHONE_UK"
	EntityPhoneEU    EntityKind = "PHONE_EU"
	EntityLEI        EntityKind = "LEI"
	EntityIBAN       EntityKind = "IBAN"
	EntitySWIFT      EntityKind = "SWIFT"
	EntityVAT        EntityKind = "VAT"
	EntityIMO        EntityKind = "IMO"
	EntityMMSI       EntityKind = "MMSI"
	EntityISIN       EntityKind = "ISIN"
	EntityDUNS       EntityKind = "DUNS"
	EntityUKCRN      EntityKind = "UK_CRN"
	EntityDEHRB      EntityKind = "DE_HRB"
	EntityFRSIREN    EntityKind = "FR_SIREN"
	EntityBTC        EntityKind = "BTC"
	EntityBTCBech32  EntityKind = "BTC_BECH32"
	EntityETH        EntityKind = "ETH"
	EntityLTC        EntityKind = "LTC"
	EntityXRP        EntityKind = "XRP"
	EntityXMR        EntityKind = "XMR"
	EntityPerson     EntityKind = "PERSON"
	EntityCompany    EntityKind = "COMPANY"
)

// TripwireHit is one occurrence of a curated term in a page's text.
type TripwireHit struct {
	Category TripwireCategory `json:"category"`
	Term     string           `json:"term"`
	Span     [2]int           `json:"span"`
}

// Seed is an immutable starting point for a crawl of one domain.
type Seed struct {
	URL string
}

// FrontierEntry is a candidate URL awaiting fetch within a single domain's
// crawl.
type FrontierEntry struct {
	URL       string
	Depth     int
	ParentURL string
}

// Page is the result of a successful fetch plus extraction. Fields above
// the line are exactly spec.md §3's schema; fields below are SPEC_FULL.md
// expansion fields, additive only.
type Page struct {
	URL            string                   `json:"url"`
	Depth          int                      `json:"depth"`
	Source         FetchSource              `json:"source"`
	HTTPStatus     int                      `json:"http_status"`
	ContentType    string                   `json:"content_type"`
	Len            int                      `json:"len"`
	Text           string                   `json:"text,omitempty"`
	InternalLinks  int                      `json:"internal_links"`
	Outlinks       []string                 `json:"outlinks,omitempty"`
	Entities       map[EntityKind][]string  `json:"entities"`
	Tripwires      []TripwireHit            `json:"tripwires,omitempty"`
	CrawledAt      time.Time                `json:"crawled_at"`

	// expansion fields
	ContentHash    string            `json:"content_hash,omitempty"`
	BinaryMetadata map[string]string `json:"binary_metadata,omitempty"`
	Partial        bool              `json:"partial,omitempty"`
	WARCRecordID   string            `json:"warc_record_id,omitempty"`
}

// FetchFailed reports whether this Page represents a fetch-failure record
// rather than a successful fetch.
func (p *Page) FetchFailed() bool {
	return p.Source == sourceFailed
}

// MarkFetchFailed converts p into the optional fetch-failure record
// spec.md §4.3 describes ("a fetch-failure record, configurable, default
// on").
func (p *Page) MarkFetchFailed() {
	p.Source = sourceFailed
}

// HTMLLink is one link extracted from a page, tagged with whether it
// resolves to the page's own registrable domain. The HTML walk fills in
// Href and Internal only; AnchorText is always left empty.
type HTMLLink struct {
	Href       string
	AnchorText string
	Internal   bool
}

package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/araddon/dateparse"

	"github.com/pacmancrawl/pacman"
)

// cdxRow is one row of the Wayback CDX API's JSON response: the first row
// is a header naming the fields, every row after is positional data in
// that order. PACMAN requests exactly
// timestamp,original,statuscode,mimetype,length so the indices below are
// fixed.
type cdxRow struct {
	Timestamp  string
	Original   string
	StatusCode string
	MimeType   string
	Length     string
}

// TierB queries the Wayback Machine's CDX index for the most recent
// capture of a URL, then fetches that capture's replay. It is tried when
// Tier A signals a class of failure Tier A itself cannot recover from
// (404/410/403, connection refused, TLS failure, undersized body).
type TierB struct {
	httpTier
	CDXEndpoint string
	Timeout     time.Duration
}

// NewTierB builds a Tier B fetcher. client is the worker's shared HTTP
// client; endpoint and timeout come from Config.Archive.
func NewTierB(client *http.Client, endpoint string, timeout time.Duration) *TierB {
	return &TierB{httpTier: httpTier{client: client}, CDXEndpoint: endpoint, Timeout: timeout}
}

func (t *TierB) Fetch(ctx context.Context, u *pacman.URL, depth int, maxBodyBytes int64, ua string) TierResult {
	ctx, cancel := context.WithTimeout(ctx, t.Timeout)
	defer cancel()

	row, err := t.queryCDX(ctx, u.String())
	if err != nil {
		return TierResult{Outcome: outcomeNextTier, Err: pacman.Wrap(pacman.KindTransient, pacman.ErrAllTiersExhausted, err.Error())}
	}
	if row == nil {
		return TierResult{Outcome: outcomeNextTier, Err: pacman.Wrap(pacman.KindTerminal, pacman.ErrAllTiersExhausted, "no archive capture found")}
	}

	capturedAt, err := dateparse.ParseAny(row.Timestamp)
	if err != nil {
		capturedAt = time.Now()
	}

	replayURL := fmt.Sprintf("https://web.archive.org/web/%sid_/%s", row.Timestamp, row.Original)
	resp, body, err := t.get(ctx, replayURL, ua, maxBodyBytes)
	if err != nil && resp == nil {
		return TierResult{Outcome: outcomeNextTier, Err: pacman.Wrap(pacman.KindTransient, pacman.ErrAllTiersExhausted, err.Error())}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return TierResult{StatusCode: resp.StatusCode, Outcome: outcomeNextTier, Err: httpStatusError(resp.StatusCode)}
	}

	var warcID string
	if strings.Contains(resp.Header.Get("Content-Type"), "warc") || strings.HasSuffix(row.Original, ".warc.gz") {
		if rec, id, perr := parseWARCBody(body); perr == nil {
			body = rec
			warcID = id
		}
	}

	return TierResult{
		StatusCode: resp.StatusCode,
		Outcome:    outcomeSuccess,
		Body:       body,
		Page: &pacman.Page{
			URL:          u.String(),
			Depth:        depth,
			Source:       pacman.SourceArchiveIndex,
			HTTPStatus:   resp.StatusCode,
			ContentType:  resp.Header.Get("Content-Type"),
			Len:          len(body),
			CrawledAt:    capturedAt,
			WARCRecordID: warcID,
		},
	}
}

func (t *TierB) queryCDX(ctx context.Context, target string) (*cdxRow, error) {
	q := url.Values{}
	q.Set("url", target)
	q.Set("output", "json")
	q.Set("limit", "1")
	q.Set("sort", "reverse")
	q.Set("filter", "statuscode:200")
	q.Set("fl", "timestamp,original,statuscode,mimetype,length")

	reqURL := t.CDXEndpoint + "?" + q.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := t.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var rows [][]string
	if err := json.NewDecoder(resp.Body).Decode(&rows); err != nil {
		return nil, err
	}
	if len(rows) < 2 {
		return nil, nil // header only, or empty: no capture
	}
	row := rows[1]
	if len(row) < 5 {
		return nil, fmt.Errorf("malformed cdx row: %v", row)
	}
	return &cdxRow{Timestamp: row[0], Original: row[1], StatusCode: row[2], MimeType: row[3], Length: row[4]}, nil
}

// TierC fetches the archive.org live replay endpoint directly, bypassing
// a CDX lookup. It is tried when Tier B finds no capture at all: the
// replay endpoint itself performs "nearest capture" resolution server
// side.
type TierC struct {
	httpTier
	Timeout time.Duration
}

// NewTierC builds a Tier C fetcher.
func NewTierC(client *http.Client, timeout time.Duration) *TierC {
	return &TierC{httpTier: httpTier{client: client}, Timeout: timeout}
}

func (t *TierC) Fetch(ctx context.Context, u *pacman.URL, depth int, maxBodyBytes int64, ua string) TierResult {
	ctx, cancel := context.WithTimeout(ctx, t.Timeout)
	defer cancel()

	replayURL := "https://web.archive.org/web/2id_/" + u.String()
	resp, body, err := t.get(ctx, replayURL, ua, maxBodyBytes)
	if err != nil && resp == nil {
		return TierResult{Outcome: outcomeNextTier, Err: pacman.Wrap(pacman.KindTransient, pacman.ErrAllTiersExhausted, err.Error())}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return TierResult{StatusCode: resp.StatusCode, Outcome: outcomeNextTier, Err: httpStatusError(resp.StatusCode)}
	}

	var warcID string
	if strings.Contains(resp.Header.Get("Content-Type"), "warc") {
		if rec, id, perr := parseWARCBody(body); perr == nil {
			body = rec
			warcID = id
		}
	}

	return TierResult{
		StatusCode: resp.StatusCode,
		Outcome:    outcomeSuccess,
		Body:       body,
		Page: &pacman.Page{
			URL:          u.String(),
			Depth:        depth,
			Source:       pacman.SourceArchiveLive,
			HTTPStatus:   resp.StatusCode,
			ContentType:  resp.Header.Get("Content-Type"),
			Len:          len(body),
			CrawledAt:    time.Now(),
			WARCRecordID: warcID,
		},
	}
}

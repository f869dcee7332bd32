package pipeline

import (
	"bytes"
	"fmt"
	"io"

	"github.com/slyrz/warc"
)

// parseWARCBody reads the first "response" record out of a WARC bundle and
// returns its payload bytes (the HTTP response body the record wraps,
// after stripping the embedded HTTP header block) plus the record's
// WARC-Record-ID, so a Page can carry warc_record_id for downstream
// correlation.
func parseWARCBody(data []byte) ([]byte, string, error) {
	reader, err := warc.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, "", err
	}

	for {
		record, err := reader.ReadRecord()
		if err == io.EOF {
			return nil, "", fmt.Errorf("no response record found in warc bundle")
		}
		if err != nil {
			return nil, "", err
		}
		if record.Header.Get("WARC-Type") != "response" {
			continue
		}

		payload, err := io.ReadAll(record.Content)
		if err != nil {
			return nil, "", err
		}
		body := stripHTTPHeader(payload)
		return body, record.Header.Get("WARC-Record-ID"), nil
	}
}

// stripHTTPHeader removes the embedded HTTP/1.x response header block a
// WARC "response" record's payload carries ahead of the actual body,
// splitting on the first blank-line boundary.
func stripHTTPHeader(payload []byte) []byte {
	idx := bytes.Index(payload, []byte("\r\n\r\n"))
	if idx < 0 {
		return payload
	}
	return payload[idx+4:]
}

package pipeline

import (
	"archive/tar"
	"archive/zip"
	"bytes"
	"compress/gzip"
	"encoding/xml"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/nguyenthenguyen/docx"
	"github.com/xuri/excelize/v2"

	"github.com/pacmancrawl/pacman"
)

// BinaryExtractor pulls plain text and metadata out of a non-HTML payload.
// Every implementation below handles exactly one content family; binary.go
// dispatches on MIME type / file extension to pick one.
type BinaryExtractor interface {
	Extract(body []byte) (text string, metadata map[string]string, partial bool, err error)
}

// ExtractBinary routes body to the extractor matching contentType or ext
// (a lowercase extension including the leading dot, e.g. ".pdf"), and
// returns pacman.ErrBinaryUnsupported for formats PACMAN recognizes by
// name but cannot parse (legacy OLE .doc/.xls/.ppt).
func ExtractBinary(body []byte, contentType, ext string) (string, map[string]string, bool, error) {
	switch {
	case strings.Contains(contentType, "pdf") || ext == ".pdf":
		return (&pdfExtractor{}).Extract(body)
	case strings.Contains(contentType, "spreadsheetml") || ext == ".xlsx":
		return (&xlsxExtractor{}).Extract(body)
	case strings.Contains(contentType, "wordprocessingml") || ext == ".docx":
		return (&docxExtractor{}).Extract(body)
	case strings.Contains(contentType, "presentationml") || ext == ".pptx":
		return (&pptxExtractor{}).Extract(body)
	case ext == ".zip":
		return (&zipExtractor{}).Extract(body)
	case ext == ".tar":
		return (&tarExtractor{}).Extract(body)
	case ext == ".gz" || ext == ".tar.gz" || ext == ".tgz":
		return (&gzipExtractor{}).Extract(body)
	case ext == ".doc" || ext == ".xls" || ext == ".ppt":
		return "", nil, false, pacman.ErrBinaryUnsupported
	default:
		return "", nil, false, pacman.ErrBinaryUnsupported
	}
}

type pdfExtractor struct{}

func (e *pdfExtractor) Extract(body []byte) (string, map[string]string, bool, error) {
	r, err := pdf.NewReader(bytes.NewReader(body), int64(len(body)))
	if err != nil {
		return "", nil, false, pacman.Wrap(pacman.KindTerminal, pacman.ErrBinaryUnsupported, err.Error())
	}

	var sb strings.Builder
	n := r.NumPage()
	for i := 1; i <= n; i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		sb.WriteString(text)
		sb.WriteString("\n")
	}
	return sb.String(), map[string]string{"page_count": strconv.Itoa(n)}, false, nil
}

type xlsxExtractor struct{}

func (e *xlsxExtractor) Extract(body []byte) (string, map[string]string, bool, error) {
	f, err := excelize.OpenReader(bytes.NewReader(body))
	if err != nil {
		return "", nil, false, pacman.Wrap(pacman.KindTerminal, pacman.ErrBinaryUnsupported, err.Error())
	}
	defer f.Close()

	sheets := f.GetSheetList()
	var sb strings.Builder
	for _, sheet := range sheets {
		rows, err := f.GetRows(sheet)
		if err != nil {
			continue
		}
		for _, row := range rows {
			sb.WriteString(strings.Join(row, "\t"))
			sb.WriteString("\n")
		}
	}
	return sb.String(), map[string]string{"sheets": strings.Join(sheets, ",")}, false, nil
}

type docxExtractor struct{}

func (e *docxExtractor) Extract(body []byte) (string, map[string]string, bool, error) {
	r := bytes.NewReader(body)
	doc, err := docx.ReadDocxFromMemory(r, int64(len(body)))
	if err != nil {
		return "", nil, false, pacman.Wrap(pacman.KindTerminal, pacman.ErrBinaryUnsupported, err.Error())
	}
	defer doc.Close()
	return doc.Editable().GetContent(), nil, false, nil
}

type pptxSlideText struct {
	XMLName xml.Name `xml:"sld"`
	Texts   []string `xml:"cSld>spTree>sp>txBody>p>r>t"`
}

type pptxExtractor struct{}

func (e *pptxExtractor) Extract(body []byte) (string, map[string]string, bool, error) {
	zr, err := zip.NewReader(bytes.NewReader(body), int64(len(body)))
	if err != nil {
		return "", nil, false, pacman.Wrap(pacman.KindTerminal, pacman.ErrBinaryUnsupported, err.Error())
	}

	var sb strings.Builder
	slideCount := 0
	for _, f := range zr.File {
		if !strings.HasPrefix(f.Name, "ppt/slides/slide") || !strings.HasSuffix(f.Name, ".xml") {
			continue
		}
		slideCount++
		rc, err := f.Open()
		if err != nil {
			continue
		}
		data, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			continue
		}
		var slide pptxSlideText
		if err := xml.Unmarshal(data, &slide); err != nil {
			continue
		}
		for _, t := range slide.Texts {
			sb.WriteString(t)
			sb.WriteString(" ")
		}
		sb.WriteString("\n")
	}
	return sb.String(), map[string]string{"slide_count": strconv.Itoa(slideCount)}, false, nil
}

// zipExtractor, tarExtractor, gzipExtractor handle the generic containers
// spec.md's binary surface names: they do not extract entity text
// themselves, only enumerate member names as metadata, since a ZIP/TAR/
// GZIP bundle found mid-crawl is rarely itself prose.
type zipExtractor struct{}

func (e *zipExtractor) Extract(body []byte) (string, map[string]string, bool, error) {
	zr, err := zip.NewReader(bytes.NewReader(body), int64(len(body)))
	if err != nil {
		return "", nil, false, pacman.Wrap(pacman.KindTerminal, pacman.ErrBinaryUnsupported, err.Error())
	}
	names := make([]string, 0, len(zr.File))
	for _, f := range zr.File {
		names = append(names, f.Name)
	}
	return "", map[string]string{"member_count": strconv.Itoa(len(names)), "members": strings.Join(names, ",")}, false, nil
}

type tarExtractor struct{}

func (e *tarExtractor) Extract(body []byte) (string, map[string]string, bool, error) {
	tr := tar.NewReader(bytes.NewReader(body))
	var names []string
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", nil, false, pacman.Wrap(pacman.KindTerminal, pacman.ErrBinaryUnsupported, err.Error())
		}
		names = append(names, hdr.Name)
	}
	return "", map[string]string{"member_count": strconv.Itoa(len(names)), "members": strings.Join(names, ",")}, false, nil
}

type gzipExtractor struct{}

func (e *gzipExtractor) Extract(body []byte) (string, map[string]string, bool, error) {
	gr, err := gzip.NewReader(bytes.NewReader(body))
	if err != nil {
		return "", nil, false, pacman.Wrap(pacman.KindTerminal, pacman.ErrBinaryUnsupported, err.Error())
	}
	defer gr.Close()

	if strings.HasSuffix(gr.Name, ".tar") || gr.Name == "" {
		data, err := io.ReadAll(io.LimitReader(gr, 50*1024*1024))
		if err != nil {
			return "", nil, false, fmt.Errorf("reading gzip stream: %w", err)
		}
		return (&tarExtractor{}).Extract(data)
	}
	return "", map[string]string{"inner_name": gr.Name}, false, nil
}

// Package csv reads delimited purchase-order exports into a records.Table.
// Input is decoded on the fly (UTF-8 with optional BOM, or Windows-1252) and
// may pass through a streaming byte rewriter for known bad sequences before
// reaching encoding/csv.
package csv

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"

	"poclean/pkg/records"
)

// Supported input encodings.
const (
	EncodingUTF8        = "utf-8"
	EncodingWindows1252 = "windows-1252"
	EncodingLatin1      = "iso-8859-1"
)

// defaultLogLimit caps how many skipped rows are logged individually.
const defaultLogLimit = 100

// utf8BOM is stripped from the first header cell if present.
const utf8BOM = "\uFEFF"

// Replacement is one byte sequence rewrite applied before CSV decoding.
type Replacement struct {
	From string
	To   string
}

// Options configures the CSV parser. Zero values give a comma separated,
// UTF-8, strict-quoting reader that keeps header names as written.
type Options struct {
	// Comma is the field delimiter. When zero, ',' is used.
	Comma rune

	// Encoding of the input bytes: utf-8 (default), windows-1252 or
	// iso-8859-1.
	Encoding string

	// TrimSpace trims leading/trailing spaces from each field value.
	TrimSpace bool

	// LazyQuotes relaxes quote handling for hand-edited exports.
	LazyQuotes bool

	// ExpectedFields, when > 0, fixes the row width instead of the header's.
	ExpectedFields int

	// HeaderMap renames source headers. Unmapped headers are kept as written
	// (trimmed, BOM removed).
	HeaderMap map[string]string

	// Scrub lists byte rewrites applied to the raw stream, in order.
	Scrub []Replacement

	// LogLimit caps the number of skipped rows logged; 0 means the default.
	LogLimit int

	Logger *slog.Logger
}

// Parser parses CSV input according to Options. It is safe to reuse across
// inputs but not for concurrent use.
type Parser struct{ opt Options }

// NewParser constructs a Parser with the provided Options.
func NewParser(opt Options) *Parser { return &Parser{opt: opt} }

// Parse reads the header and every data row. Rows that fail to parse or have
// the wrong width are skipped and counted; an unreadable header is an error.
// Empty cells are stored as nil.
func (p *Parser) Parse(r io.Reader) (records.Table, int, error) {
	log := p.opt.Logger
	if log == nil {
		log = slog.Default()
	}
	limit := p.opt.LogLimit
	if limit <= 0 {
		limit = defaultLogLimit
	}

	dec, err := decoder(r, p.opt.Encoding)
	if err != nil {
		return records.Table{}, 0, err
	}
	r = dec
	for _, s := range p.opt.Scrub {
		if s.From != "" {
			r = newStreamingRewriter(r, []byte(s.From), []byte(s.To))
		}
	}

	cr := csv.NewReader(r)
	if p.opt.Comma != 0 {
		cr.Comma = p.opt.Comma
	}
	cr.LazyQuotes = p.opt.LazyQuotes
	// Width is checked below so a bad row is skipped instead of aborting.
	cr.FieldsPerRecord = -1

	h, err := cr.Read()
	if err != nil {
		return records.Table{}, 0, fmt.Errorf("read csv header: %w", err)
	}
	headers := normalizeHeaders(h, p.opt.HeaderMap)
	width := len(headers)
	if p.opt.ExpectedFields > 0 {
		width = p.opt.ExpectedFields
	}

	tbl := records.Table{Columns: headers}
	skipped := 0
	for line := 2; ; line++ {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			if skipped < limit {
				log.Warn("skipping csv row", "line", line, "error", err)
			}
			skipped++
			continue
		}
		if len(row) != width {
			if skipped < limit {
				log.Warn("skipping csv row", "line", line, "expected_fields", width, "got_fields", len(row))
			}
			skipped++
			continue
		}

		rec := make(records.Record, len(row))
		for i, val := range row {
			if p.opt.TrimSpace {
				val = strings.TrimSpace(val)
			}
			rec[keyFor(i, headers)] = emptyToNil(val)
		}
		tbl.Rows = append(tbl.Rows, rec)
	}
	if skipped > limit {
		log.Warn("more csv rows skipped than logged", "skipped", skipped, "logged", limit)
	}
	return tbl, skipped, nil
}

// decoder wraps r so that it yields UTF-8.
func decoder(r io.Reader, enc string) (io.Reader, error) {
	switch strings.ToLower(strings.TrimSpace(enc)) {
	case "", EncodingUTF8, "utf8":
		return r, nil
	case EncodingWindows1252, "cp1252":
		return transform.NewReader(r, charmap.Windows1252.NewDecoder()), nil
	case EncodingLatin1, "latin1":
		return transform.NewReader(r, charmap.ISO8859_1.NewDecoder()), nil
	default:
		return nil, fmt.Errorf("csv: unsupported encoding %q", enc)
	}
}

// keyFor returns the column key for index idx, using headers when available,
// otherwise synthesizing a "col_N" name.
func keyFor(idx int, headers []string) string {
	if idx < len(headers) && headers[idx] != "" {
		return headers[idx]
	}
	return fmt.Sprintf("col_%d", idx)
}

// emptyToNil converts an empty string to nil; all other values are returned as-is.
func emptyToNil(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// normalizeHeaders trims header cells, strips a UTF-8 BOM from the first one
// and applies headerMap. Column names are otherwise kept verbatim since the
// export's names are the schema's names.
func normalizeHeaders(h []string, headerMap map[string]string) []string {
	res := make([]string, len(h))
	for i, col := range h {
		c := col
		if i == 0 {
			c = strings.TrimPrefix(c, utf8BOM)
		}
		c = strings.TrimSpace(c)
		if m, ok := headerMap[c]; ok {
			c = m
		}
		if c == "" {
			c = fmt.Sprintf("col_%d", i)
		}
		res[i] = c
	}
	return res
}

// streamingRewriter is an io.Reader that replaces every occurrence of pat
// with repl without buffering the whole stream. It keeps the last
// len(pat)-1 bytes of each block as carry so matches spanning two reads are
// still found.
type streamingRewriter struct {
	br    *bufio.Reader
	pat   []byte
	repl  []byte
	carry []byte
	tmp   []byte
	buf   bytes.Buffer
	eof   bool
}

func newStreamingRewriter(r io.Reader, pat, repl []byte) *streamingRewriter {
	return &streamingRewriter{
		br:    bufio.NewReaderSize(r, 64*1024),
		pat:   pat,
		repl:  repl,
		carry: make([]byte, 0, max(len(pat)-1, 0)),
		tmp:   make([]byte, 64*1024),
	}
}

func (sr *streamingRewriter) Read(p []byte) (int, error) {
	for sr.buf.Len() == 0 {
		if sr.eof {
			return 0, io.EOF
		}
		if err := sr.fill(); err != nil {
			return 0, err
		}
	}
	return sr.buf.Read(p)
}

// fill reads one block, rewrites it and moves everything but the carry into
// the output buffer.
func (sr *streamingRewriter) fill() error {
	n, rerr := sr.br.Read(sr.tmp)
	if n > 0 {
		block := append(append([]byte(nil), sr.carry...), sr.tmp[:n]...)
		if !bytes.Equal(sr.pat, sr.repl) {
			block = bytes.ReplaceAll(block, sr.pat, sr.repl)
		}
		k := len(sr.pat) - 1
		if k > 0 && len(block) > k {
			sr.buf.Write(block[:len(block)-k])
			sr.carry = append(sr.carry[:0], block[len(block)-k:]...)
		} else if k > 0 {
			sr.carry = append(sr.carry[:0], block...)
		} else {
			sr.buf.Write(block)
			sr.carry = sr.carry[:0]
		}
	}
	switch {
	case rerr == io.EOF:
		sr.buf.Write(sr.carry)
		sr.carry = sr.carry[:0]
		sr.eof = true
	case rerr != nil:
		return rerr
	}
	return nil
}

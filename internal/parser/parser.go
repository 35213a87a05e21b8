// Package parser turns raw input bytes into a records.Table.
package parser

import (
	"bytes"
	"io"
	"path/filepath"
	"strings"

	"poclean/pkg/records"
)

// Input formats.
const (
	FormatCSV  = "csv"
	FormatXLSX = "xlsx"
	FormatAuto = "auto"
)

// SniffLen is how many leading bytes Detect looks at.
const SniffLen = 8

// Parser reads a whole table. It returns the rows it could read and the
// number of rows it had to skip; only failures that make the input unusable
// are returned as errors.
type Parser interface {
	Parse(r io.Reader) (records.Table, int, error)
}

var zipMagic = []byte("PK\x03\x04")

// Detect picks an input format from the file extension of name and, failing
// that, from the leading bytes of the content. Unknown input is CSV.
func Detect(name string, head []byte) string {
	switch strings.ToLower(filepath.Ext(stripQuery(name))) {
	case ".xlsx", ".xlsm":
		return FormatXLSX
	case ".csv", ".txt", ".tsv":
		return FormatCSV
	}
	if bytes.HasPrefix(head, zipMagic) {
		return FormatXLSX
	}
	return FormatCSV
}

func stripQuery(name string) string {
	if i := strings.IndexAny(name, "?#"); i >= 0 {
		return name[:i]
	}
	return name
}

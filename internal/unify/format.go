package unify

import (
	"path/filepath"
	"strings"
)

// Format is the closed set of content kinds the aggregator understands.
type Format int

const (
	FormatUnsupported Format = iota
	FormatText
	FormatWord
	FormatSpreadsheet
	FormatPDF
)

func (f Format) String() string {
	switch f {
	case FormatText:
		return "TXT"
	case FormatWord:
		return "DOCX"
	case FormatSpreadsheet:
		return "Excel"
	case FormatPDF:
		return "PDF"
	default:
		return "unsupported"
	}
}

// Classify picks a format from the file extension, case-insensitively.
func Classify(name string) Format {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".txt":
		return FormatText
	case ".docx":
		return FormatWord
	case ".xlsx", ".xls":
		return FormatSpreadsheet
	case ".pdf":
		return FormatPDF
	default:
		return FormatUnsupported
	}
}

// Package splice combines sequentially rendered fragments of one export into a
// single valid document. Each format decides what to strip from a fragment
// depending on whether it is the first and/or final step, and whether the
// artifact is appended to or rewritten wholesale.
package splice

import (
	"fmt"

	"insights-export/internal/core/domain"
)

// Position tells a splicer where a fragment sits in the export. Offset is the
// number of data rows already written according to the ledger, Rows the
// number of data rows in the fragment and Size the current artifact size in bytes.
type Position struct {
	First  bool
	Final  bool
	Offset int
	Rows   int
	Size   int64
}

// Write is what the step executor persists for one fragment
type Write struct {
	Data []byte
	Mode domain.PersistMode
}

// Loader returns the current artifact contents. Only whole-document formats call it.
type Loader func() ([]byte, error)

type Splicer interface {
	// Splice turns a rendered fragment into the bytes to persist
	Splice(fragment []byte, pos Position, load Loader) (Write, error)

	// Empty returns a minimal valid artifact for an empty result set
	Empty() ([]byte, error)
}

// ForFormat returns the splicer for a format
func ForFormat(format domain.Format) (Splicer, error) {
	switch format {
	case domain.FormatCSV:
		return CSVSplicer{}, nil
	case domain.FormatJSON:
		return JSONSplicer{}, nil
	case domain.FormatXML:
		return XMLSplicer{}, nil
	case domain.FormatXLSX:
		return XLSXSplicer{}, nil
	default:
		return nil, fmt.Errorf("%w: %s", domain.ErrInvalidFormat, format)
	}
}

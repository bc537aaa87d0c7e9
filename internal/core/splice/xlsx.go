package splice

import (
	"bytes"
	"fmt"

	"github.com/xuri/excelize/v2"

	"insights-export/internal/core/domain"
)

// XLSXSplicer merges each fragment's data rows into the existing workbook and
// rewrites it. Every step re-reads the whole workbook, so the cost of an export
// grows quadratically with its row count; the planner caps XLSX totals for that reason.
type XLSXSplicer struct{}

func (XLSXSplicer) Splice(fragment []byte, pos Position, load Loader) (Write, error) {
	if pos.First {
		return Write{Data: fragment, Mode: domain.PersistRewrite}, nil
	}

	existing, err := load()
	if err != nil {
		return Write{}, fmt.Errorf("splice xlsx: load workbook: %w", err)
	}

	data, err := appendWorkbookRows(existing, fragment, pos)
	if err != nil {
		return Write{}, fmt.Errorf("splice xlsx: %w", err)
	}
	return Write{Data: data, Mode: domain.PersistRewrite}, nil
}

func (XLSXSplicer) Empty() ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("empty workbook: %w", err)
	}
	return buf.Bytes(), nil
}

// appendWorkbookRows copies the data rows (header skipped) of the fragment's
// first sheet into the existing workbook's first sheet, starting below the
// header plus pos.Offset rows. Rows are addressed by number rather than read
// back with GetRows, which drops trailing rows whose cells are all empty.
func appendWorkbookRows(existing, fragment []byte, pos Position) ([]byte, error) {
	src, err := excelize.OpenReader(bytes.NewReader(fragment))
	if err != nil {
		return nil, fmt.Errorf("open fragment: %w", err)
	}
	defer src.Close()

	dst, err := excelize.OpenReader(bytes.NewReader(existing))
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer dst.Close()

	srcSheet := src.GetSheetName(0)
	srcRows, err := src.GetRows(srcSheet)
	if err != nil {
		return nil, fmt.Errorf("read fragment rows: %w", err)
	}

	count := pos.Rows
	if count <= 0 {
		count = len(srcRows) - 1
	}
	width := 0
	for _, row := range srcRows {
		if len(row) > width {
			width = len(row)
		}
	}

	sheet := dst.GetSheetName(0)
	next := pos.Offset + 2
	for r := 2; r <= count+1; r++ {
		values := make([]interface{}, width)
		for c := 1; c <= width; c++ {
			cell, err := excelize.CoordinatesToCellName(c, r)
			if err != nil {
				return nil, err
			}
			v, err := src.GetCellValue(srcSheet, cell)
			if err != nil {
				return nil, fmt.Errorf("read fragment cell %s: %w", cell, err)
			}
			values[c-1] = v
		}
		cell, err := excelize.CoordinatesToCellName(1, next)
		if err != nil {
			return nil, err
		}
		if err := dst.SetSheetRow(sheet, cell, &values); err != nil {
			return nil, fmt.Errorf("write row %d: %w", next, err)
		}
		next++
	}

	buf, err := dst.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("serialize workbook: %w", err)
	}
	return buf.Bytes(), nil
}

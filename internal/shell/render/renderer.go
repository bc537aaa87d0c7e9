package render

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"encoding/xml"
	"fmt"

	"github.com/xuri/excelize/v2"

	"insights-export/internal/core/domain"
	"insights-export/internal/core/ports"
)

// TabularRenderer renders every batch as a complete document with one column per
// query column. When no columns are configured the first row's columns are used,
// and an empty batch asks the column lister, if any.
type TabularRenderer struct {
	columns []string
	lister  ports.ColumnLister
}

var _ ports.Renderer = (*TabularRenderer)(nil)

func New(columns []string) *TabularRenderer {
	return &TabularRenderer{columns: columns}
}

// WithColumnLister sets where the columns of an empty batch come from
func (r *TabularRenderer) WithColumnLister(lister ports.ColumnLister) *TabularRenderer {
	r.lister = lister
	return r
}

func (r *TabularRenderer) Render(ctx context.Context, rows []domain.RenderedRow, format domain.Format) ([]byte, error) {
	columns := r.columns
	if len(columns) == 0 && len(rows) > 0 {
		columns = rows[0].Columns()
	}
	if len(columns) == 0 && r.lister != nil {
		listed, err := r.lister.Columns(ctx)
		if err != nil {
			return nil, fmt.Errorf("list columns: %w", err)
		}
		columns = listed
	}

	switch format {
	case domain.FormatCSV:
		return renderCSV(columns, rows)
	case domain.FormatJSON:
		return renderJSON(columns, rows)
	case domain.FormatXML:
		return renderXML(columns, rows)
	case domain.FormatXLSX:
		return renderXLSX(columns, rows)
	default:
		return nil, fmt.Errorf("%w: %s", domain.ErrInvalidFormat, format)
	}
}

func values(columns []string, row domain.RenderedRow) []string {
	out := make([]string, len(columns))
	for i, col := range columns {
		out[i], _ = row.Value(col)
	}
	return out
}

func renderCSV(columns []string, rows []domain.RenderedRow) ([]byte, error) {
	if len(columns) == 0 {
		return nil, nil
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(columns); err != nil {
		return nil, fmt.Errorf("write csv header: %w", err)
	}
	for _, row := range rows {
		if err := w.Write(values(columns, row)); err != nil {
			return nil, fmt.Errorf("write csv record: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("flush csv: %w", err)
	}
	return buf.Bytes(), nil
}

func renderJSON(columns []string, rows []domain.RenderedRow) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString("[")
	for i, row := range rows {
		if i > 0 {
			buf.WriteString(",")
		}
		buf.WriteString("\n  {")
		for j, col := range columns {
			if j > 0 {
				buf.WriteString(", ")
			}
			value, _ := row.Value(col)
			key, err := json.Marshal(col)
			if err != nil {
				return nil, err
			}
			val, err := json.Marshal(value)
			if err != nil {
				return nil, err
			}
			buf.Write(key)
			buf.WriteString(": ")
			buf.Write(val)
		}
		buf.WriteString("}")
	}
	if len(rows) > 0 {
		buf.WriteString("\n")
	}
	buf.WriteString("]\n")
	return buf.Bytes(), nil
}

func renderXML(columns []string, rows []domain.RenderedRow) ([]byte, error) {
	names := make([]string, len(columns))
	for i, col := range columns {
		names[i] = elementName(col)
	}

	var buf bytes.Buffer
	buf.WriteString(xml.Header)
	buf.WriteString("<rows>\n")
	for _, row := range rows {
		buf.WriteString("  <row>")
		for i, value := range values(columns, row) {
			buf.WriteString("<" + names[i] + ">")
			if err := xml.EscapeText(&buf, []byte(value)); err != nil {
				return nil, fmt.Errorf("escape %s: %w", columns[i], err)
			}
			buf.WriteString("</" + names[i] + ">")
		}
		buf.WriteString("</row>\n")
	}
	buf.WriteString("</rows>\n")
	return buf.Bytes(), nil
}

// elementName maps a column name onto a valid XML element name
func elementName(col string) string {
	var b []rune
	for i, r := range col {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r == '_':
			b = append(b, r)
		case (r >= '0' && r <= '9') || r == '-' || r == '.':
			if i == 0 {
				b = append(b, '_')
			}
			b = append(b, r)
		default:
			b = append(b, '_')
		}
	}
	if len(b) == 0 {
		return "field"
	}
	return string(b)
}

func renderXLSX(columns []string, rows []domain.RenderedRow) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	sheet := f.GetSheetName(0)
	for i, record := range append([][]string{columns}, recordsOf(columns, rows)...) {
		if len(record) == 0 {
			continue
		}
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return nil, err
		}
		cells := make([]interface{}, len(record))
		for j, v := range record {
			cells[j] = v
		}
		if err := f.SetSheetRow(sheet, cell, &cells); err != nil {
			return nil, fmt.Errorf("write row %d: %w", i+1, err)
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("serialize workbook: %w", err)
	}
	return buf.Bytes(), nil
}

func recordsOf(columns []string, rows []domain.RenderedRow) [][]string {
	records := make([][]string, len(rows))
	for i, row := range rows {
		records[i] = values(columns, row)
	}
	return records
}

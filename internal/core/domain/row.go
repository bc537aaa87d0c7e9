package domain

// Field is one rendered column value
type Field struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// RenderedRow is a row whose fields are already formatted as text, in column order.
type RenderedRow struct {
	Fields []Field `json:"fields"`
}

func NewRenderedRow(columns []string, values []string) RenderedRow {
	fields := make([]Field, 0, len(columns))
	for i, col := range columns {
		value := ""
		if i < len(values) {
			value = values[i]
		}
		fields = append(fields, Field{Name: col, Value: value})
	}
	return RenderedRow{Fields: fields}
}

func (r RenderedRow) Value(name string) (string, bool) {
	for _, f := range r.Fields {
		if f.Name == name {
			return f.Value, true
		}
	}
	return "", false
}

func (r RenderedRow) Columns() []string {
	cols := make([]string, len(r.Fields))
	for i, f := range r.Fields {
		cols[i] = f.Name
	}
	return cols
}

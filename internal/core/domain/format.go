package domain

type Format string

const (
	FormatCSV  Format = "csv"
	FormatJSON Format = "json"
	FormatXML  Format = "xml"
	FormatXLSX Format = "xlsx"
)

// PersistMode tells the artifact store how a spliced chunk is written
type PersistMode string

const (
	PersistAppend  PersistMode = "append"
	PersistRewrite PersistMode = "rewrite"
)

func IsValidFormat(s string) bool {
	switch Format(s) {
	case FormatCSV, FormatJSON, FormatXML, FormatXLSX:
		return true
	default:
		return false
	}
}

// Extension returns the file extension for the format, including the leading dot
func (f Format) Extension() string {
	return "." + string(f)
}

// ContentType returns the MIME type served for artifacts of this format
func (f Format) ContentType() string {
	switch f {
	case FormatCSV:
		return "text/csv"
	case FormatJSON:
		return "application/json"
	case FormatXML:
		return "application/xml"
	case FormatXLSX:
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	default:
		return "application/octet-stream"
	}
}

package splice

import "insights-export/internal/core/domain"

// CSVSplicer keeps the header of the first fragment and drops it from every later one.
type CSVSplicer struct{}

func (CSVSplicer) Splice(fragment []byte, pos Position, _ Loader) (Write, error) {
	data := fragment
	if !pos.First {
		data = dropFirstRecord(fragment)
	}
	return Write{Data: data, Mode: domain.PersistAppend}, nil
}

func (CSVSplicer) Empty() ([]byte, error) {
	return []byte("\n"), nil
}

// dropFirstRecord removes the header record. Quoted fields may contain newlines,
// so the record ends at the first newline outside quotes.
func dropFirstRecord(b []byte) []byte {
	inQuotes := false
	for i, c := range b {
		switch c {
		case '"':
			inQuotes = !inQuotes
		case '\n':
			if !inQuotes {
				return b[i+1:]
			}
		}
	}
	return nil
}

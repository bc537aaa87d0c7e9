package splice

import (
	"bytes"
	"fmt"

	"insights-export/internal/core/domain"
)

// JSONSplicer joins array-wrapped fragments into one array.
type JSONSplicer struct{}

// openBracket is what the first step writes when its fragment has no items
var openBracket = []byte("[")

func (JSONSplicer) Splice(fragment []byte, pos Position, _ Loader) (Write, error) {
	body, err := arrayBody(fragment)
	if err != nil {
		return Write{}, fmt.Errorf("splice json: %w", err)
	}

	var buf bytes.Buffer
	if pos.First {
		buf.Write(openBracket)
	} else if len(body) > 0 && pos.Size > int64(len(openBracket)) {
		buf.WriteByte(',')
	}
	if len(body) > 0 {
		buf.WriteByte('\n')
		buf.Write(body)
	}
	if pos.Final {
		buf.WriteString("\n]\n")
	}

	return Write{Data: buf.Bytes(), Mode: domain.PersistAppend}, nil
}

func (JSONSplicer) Empty() ([]byte, error) {
	return []byte("[]\n"), nil
}

// arrayBody returns the items between the outer brackets of a JSON array
func arrayBody(fragment []byte) ([]byte, error) {
	trimmed := bytes.TrimSpace(fragment)
	if len(trimmed) < 2 || trimmed[0] != '[' || trimmed[len(trimmed)-1] != ']' {
		return nil, fmt.Errorf("fragment is not a JSON array")
	}
	return bytes.TrimSpace(trimmed[1 : len(trimmed)-1]), nil
}

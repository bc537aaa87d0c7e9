package splice

import (
	"bytes"
	"encoding/xml"
	"fmt"

	"insights-export/internal/core/domain"
)

// XMLSplicer keeps the declaration and root open tag of the first fragment and
// the root close tag of the final one.
type XMLSplicer struct{}

func (XMLSplicer) Splice(fragment []byte, pos Position, _ Loader) (Write, error) {
	parts, err := splitXML(fragment)
	if err != nil {
		return Write{}, fmt.Errorf("splice xml: %w", err)
	}

	var buf bytes.Buffer
	if pos.First {
		buf.Write(parts.prolog)
		buf.Write(parts.open)
	}
	buf.Write(parts.body)
	if pos.Final {
		buf.Write(parts.close)
		buf.WriteByte('\n')
	}

	return Write{Data: buf.Bytes(), Mode: domain.PersistAppend}, nil
}

func (XMLSplicer) Empty() ([]byte, error) {
	return []byte(xml.Header + "<rows></rows>\n"), nil
}

type xmlParts struct {
	prolog []byte // declaration, comments and whitespace before the root
	open   []byte
	body   []byte
	close  []byte
}

func splitXML(b []byte) (xmlParts, error) {
	i := 0
	for {
		i = skipSpace(b, i)
		switch {
		case bytes.HasPrefix(b[i:], []byte("<?")):
			end := bytes.Index(b[i:], []byte("?>"))
			if end < 0 {
				return xmlParts{}, fmt.Errorf("unterminated processing instruction")
			}
			i += end + 2
			continue
		case bytes.HasPrefix(b[i:], []byte("<!--")):
			end := bytes.Index(b[i:], []byte("-->"))
			if end < 0 {
				return xmlParts{}, fmt.Errorf("unterminated comment")
			}
			i += end + 3
			continue
		case bytes.HasPrefix(b[i:], []byte("<!")):
			end := bytes.IndexByte(b[i:], '>')
			if end < 0 {
				return xmlParts{}, fmt.Errorf("unterminated doctype")
			}
			i += end + 1
			continue
		}
		break
	}

	if i >= len(b) || b[i] != '<' {
		return xmlParts{}, fmt.Errorf("missing root element")
	}
	rootStart := i
	rootEnd := tagEnd(b, rootStart)
	if rootEnd < 0 {
		return xmlParts{}, fmt.Errorf("unterminated root element")
	}
	name := tagName(b[rootStart+1 : rootEnd])
	if name == "" {
		return xmlParts{}, fmt.Errorf("root element has no name")
	}

	parts := xmlParts{prolog: b[:rootStart]}

	// <rows/> carries no body; rebuild it as an open/close pair
	if b[rootEnd-1] == '/' {
		parts.open = append(append([]byte{}, b[rootStart:rootEnd-1]...), '>')
		parts.close = []byte("</" + name + ">")
		return parts, nil
	}

	parts.open = b[rootStart : rootEnd+1]
	closeTag := []byte("</" + name)
	closeStart := bytes.LastIndex(b, closeTag)
	if closeStart <= rootEnd {
		return xmlParts{}, fmt.Errorf("missing closing tag for root element %q", name)
	}
	parts.body = b[rootEnd+1 : closeStart]
	parts.close = bytes.TrimSpace(b[closeStart:])
	return parts, nil
}

func skipSpace(b []byte, i int) int {
	for i < len(b) && (b[i] == ' ' || b[i] == '\t' || b[i] == '\n' || b[i] == '\r') {
		i++
	}
	return i
}

// tagEnd returns the index of the '>' closing the tag at start, honouring quoted attributes
func tagEnd(b []byte, start int) int {
	var quote byte
	for i := start + 1; i < len(b); i++ {
		c := b[i]
		switch {
		case quote != 0:
			if c == quote {
				quote = 0
			}
		case c == '"' || c == '\'':
			quote = c
		case c == '>':
			return i
		}
	}
	return -1
}

func tagName(tag []byte) string {
	end := 0
	for end < len(tag) {
		c := tag[end]
		if c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '/' || c == '>' {
			break
		}
		end++
	}
	return string(tag[:end])
}

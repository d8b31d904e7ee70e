package structuring

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"

	scanerrors "menu-scan/pkg/errors"
	"menu-scan/pkg/models"
)

const excerptRunes = 80

// fence matches a whole response that is one Markdown code block, optionally
// tagged json.
var fence = regexp.MustCompile("(?is)^```(?:json)?[ \\t]*\\r?\\n(.*?)\\r?\\n?```$")

// ParseItems reads a structuring response. The accepted grammar is a JSON
// array of objects, either bare or as the only content of a single fenced
// code block. "[]" yields zero items. Everything else fails with an error
// matching ErrUnparseable, so callers can tell "no items" apart from "could
// not understand the response".
func ParseItems(response string) ([]models.MenuItem, error) {
	body := strings.TrimSpace(response)
	if body == "" {
		return nil, unparseable(response, "empty response")
	}

	if !strings.HasPrefix(body, "[") {
		m := fence.FindStringSubmatch(body)
		if m == nil || strings.Contains(m[1], "```") {
			return nil, unparseable(response, "expected a JSON array or one fenced JSON block")
		}
		body = strings.TrimSpace(m[1])
	}

	var raw []json.RawMessage
	dec := json.NewDecoder(strings.NewReader(body))
	if err := dec.Decode(&raw); err != nil {
		return nil, unparseable(response, fmt.Sprintf("invalid JSON array: %v", err))
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, unparseable(response, "trailing content after JSON array")
	}
	if raw == nil {
		return nil, unparseable(response, "expected a JSON array, got null")
	}

	items := make([]models.MenuItem, 0, len(raw))
	for i, r := range raw {
		r = bytes.TrimSpace(r)
		if len(r) == 0 || r[0] != '{' {
			return nil, unparseable(response, fmt.Sprintf("element %d is not an object", i))
		}
		var item models.MenuItem
		if err := json.Unmarshal(r, &item); err != nil {
			return nil, unparseable(response, fmt.Sprintf("element %d: %v", i, err))
		}
		if strings.TrimSpace(item.Name) == "" {
			return nil, unparseable(response, fmt.Sprintf("element %d has no name", i))
		}
		items = append(items, item)
	}
	return items, nil
}

func unparseable(response, reason string) error {
	excerpt := []rune(strings.TrimSpace(response))
	if len(excerpt) > excerptRunes {
		excerpt = excerpt[:excerptRunes]
	}
	return &scanerrors.UnparseableError{Excerpt: string(excerpt), Reason: reason}
}

package source

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
)

var jsonNull = []byte("null")

// FlexString accepts a JSON string, number, bool or null
type FlexString string

func (f *FlexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, jsonNull) {
		*f = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = FlexString(s)
		return nil
	}
	*f = FlexString(data)
	return nil
}

// FlexInt accepts a JSON number, a numeric string, an empty string or null
type FlexInt int

func (f *FlexInt) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, jsonNull) {
		*f = 0
		return nil
	}
	raw := string(data)
	if len(data) > 0 && data[0] == '"' {
		if err := json.Unmarshal(data, &raw); err != nil {
			return err
		}
		raw = strings.TrimSpace(raw)
	}
	if raw == "" {
		*f = 0
		return nil
	}
	n, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		// Non numeric text such as "N/A" is treated as absent
		*f = 0
		return nil
	}
	*f = FlexInt(int(n))
	return nil
}

// Ptr returns nil for zero so absent years stay absent
func (f FlexInt) Ptr() *int {
	if f == 0 {
		return nil
	}
	v := int(f)
	return &v
}

// NameList accepts null, a comma separated string, or an array whose elements
// are strings or objects carrying a "name" field
type NameList []string

func (n *NameList) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, jsonNull) || len(data) == 0 {
		*n = nil
		return nil
	}

	switch data[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*n = SplitNames(s)
		return nil
	case '[':
		var elems []json.RawMessage
		if err := json.Unmarshal(data, &elems); err != nil {
			return err
		}
		var names []string
		for _, elem := range elems {
			elem = bytes.TrimSpace(elem)
			if len(elem) == 0 {
				continue
			}
			switch elem[0] {
			case '"':
				var s string
				if err := json.Unmarshal(elem, &s); err == nil {
					names = append(names, s)
				}
			case '{':
				var obj struct {
					Name FlexString `json:"name"`
				}
				if err := json.Unmarshal(elem, &obj); err == nil {
					names = append(names, string(obj.Name))
				}
			}
		}
		*n = SplitNames(names...)
		return nil
	default:
		*n = nil
		return nil
	}
}

// RawTerm is a taxonomy entry as upstream sends it
type RawTerm struct {
	ID   FlexString `json:"id"`
	Name FlexString `json:"name"`
	Slug FlexString `json:"slug"`
}

// TermNames returns the trimmed, non empty names of terms
func TermNames(terms []RawTerm) []string {
	names := make([]string, 0, len(terms))
	for _, t := range terms {
		names = append(names, string(t.Name))
	}
	return SplitNames(names...)
}

func itoa(n int) string { return strconv.Itoa(n) }

package safety

import (
	"bytes"
	"encoding/json"
	"errors"
	"sort"
	"strconv"
	"strings"

	"golang.org/x/text/unicode/norm"
)

var (
	errFloatInCanonical  = errors.New("canonical json: floats are not allowed")
	errKeyCollision      = errors.New("canonical json: duplicate key after normalization")
	errUnsupportedInJSON = errors.New("canonical json: unsupported value")
)

// canonicalJSON encodes v with sorted keys, NFC-normalized strings, integer
// numbers only and null members dropped. v goes through encoding/json first
// so an in-memory value and the same value reloaded from storage produce
// identical bytes.
func canonicalJSON(v any) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var generic any
	if err := dec.Decode(&generic); err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := writeCanonical(&buf, generic); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writeCanonical(buf *bytes.Buffer, v any) error {
	switch t := v.(type) {
	case nil:
		buf.WriteString("null")
	case bool:
		buf.WriteString(strconv.FormatBool(t))
	case string:
		return writeCanonicalString(buf, t)
	case json.Number:
		s := t.String()
		if strings.ContainsAny(s, ".eE") {
			return errFloatInCanonical
		}
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return errFloatInCanonical
		}
		buf.WriteString(strconv.FormatInt(n, 10))
	case []any:
		buf.WriteByte('[')
		for i, el := range t {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := writeCanonical(buf, el); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
	case map[string]any:
		return writeCanonicalObject(buf, t)
	default:
		return errUnsupportedInJSON
	}
	return nil
}

func writeCanonicalObject(buf *bytes.Buffer, obj map[string]any) error {
	normalized := make(map[string]any, len(obj))
	keys := make([]string, 0, len(obj))
	for k, val := range obj {
		if val == nil {
			continue
		}
		nk := norm.NFC.String(k)
		if _, dup := normalized[nk]; dup {
			return errKeyCollision
		}
		normalized[nk] = val
		keys = append(keys, nk)
	}
	sort.Strings(keys)

	buf.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := writeCanonicalString(buf, k); err != nil {
			return err
		}
		buf.WriteByte(':')
		if err := writeCanonical(buf, normalized[k]); err != nil {
			return err
		}
	}
	buf.WriteByte('}')
	return nil
}

func writeCanonicalString(buf *bytes.Buffer, s string) error {
	encoded, err := json.Marshal(norm.NFC.String(s))
	if err != nil {
		return err
	}
	buf.Write(encoded)
	return nil
}

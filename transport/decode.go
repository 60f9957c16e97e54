package transport

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"

	"github.com/jrsteele09/go-garage-desk/internal/errors"
)

// DecodeList decodes a response body holding a JSON array. An empty body is
// an empty sequence.
func DecodeList[T any](resp *Response) ([]T, error) {
	items := []T{}
	body := bytes.TrimSpace(resp.Body)
	if len(body) == 0 {
		return items, nil
	}
	if err := json.Unmarshal(body, &items); err != nil {
		return nil, &errors.RemoteRequestFailedError{Status: resp.Status, Body: "malformed response: " + err.Error()}
	}
	return items, nil
}

// DecodeObject decodes a response body holding a single JSON object into out.
func DecodeObject(resp *Response, out any) error {
	body := bytes.TrimSpace(resp.Body)
	if len(body) == 0 {
		return &errors.RemoteRequestFailedError{Status: resp.Status, Body: "empty response"}
	}
	if err := json.Unmarshal(body, out); err != nil {
		return &errors.RemoteRequestFailedError{Status: resp.Status, Body: "malformed response: " + err.Error()}
	}
	return nil
}

// ParseContentRange extracts the total from "<start>-<end>/<total>" or
// "*/<total>". It reports false, with a total of 0, when the header is absent
// or malformed.
func ParseContentRange(header string) (int, bool) {
	header = strings.TrimSpace(header)
	slash := strings.LastIndexByte(header, '/')
	if slash <= 0 || slash == len(header)-1 {
		return 0, false
	}

	span := header[:slash]
	if span != "*" {
		start, end, ok := strings.Cut(span, "-")
		if !ok {
			return 0, false
		}
		if _, err := strconv.Atoi(start); err != nil {
			return 0, false
		}
		if _, err := strconv.Atoi(end); err != nil {
			return 0, false
		}
	}

	total, err := strconv.Atoi(header[slash+1:])
	if err != nil || total < 0 {
		return 0, false
	}
	return total, true
}

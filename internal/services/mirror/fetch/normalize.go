package fetch

import (
	"bytes"
	"encoding/json"

	perr "feedmirror/internal/platform/errors"

	"github.com/buger/jsonparser"
)

// Normalize validates body, compacts it to one line and checks its id matches want
func Normalize(want int64, body []byte) ([]byte, error) {
	if !json.Valid(body) {
		return nil, perr.Newf(perr.ErrorCodeFetch, "item %d: malformed json", want)
	}
	var buf bytes.Buffer
	buf.Grow(len(body))
	if err := json.Compact(&buf, body); err != nil {
		return nil, perr.Wrapf(err, perr.ErrorCodeFetch, "item %d: compact", want)
	}
	line := buf.Bytes()
	got, err := jsonparser.GetInt(line, "id")
	if err != nil {
		return nil, perr.Wrapf(err, perr.ErrorCodeFetch, "item %d: no integer id", want)
	}
	if got != want {
		return nil, perr.Newf(perr.ErrorCodeFetch, "item %d: body carries id %d", want, got)
	}
	return line, nil
}

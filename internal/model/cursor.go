package model

import (
	"encoding/base64"
	"errors"
	"strconv"
	"strings"
)

// ErrInvalidCursor is returned by DecodeCursor for malformed page tokens.
var ErrInvalidCursor = errors.New("invalid page cursor")

// EncodeCursor turns the last identifier of a page into an opaque next-page
// token: the base64-url encoding of its decimal form.
func EncodeCursor(id int64) string {
	return base64.RawURLEncoding.EncodeToString([]byte(strconv.FormatInt(id, 10)))
}

// DecodeCursor reverses EncodeCursor. An empty token or "0" means the start
// of the listing. Both padded and unpadded encodings are accepted.
func DecodeCursor(s string) (int64, error) {
	if s == "" || s == "0" {
		return 0, nil
	}
	raw, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(s, "="))
	if err != nil {
		return 0, ErrInvalidCursor
	}
	id, err := strconv.ParseInt(string(raw), 10, 64)
	if err != nil || id < 0 {
		return 0, ErrInvalidCursor
	}
	return id, nil
}

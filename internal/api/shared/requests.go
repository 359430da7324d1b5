package shared

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
)

// maxRequestBodySize bounds request bodies to 1 MiB.
const maxRequestBodySize = 1 << 20

// ErrInvalidBody is returned when a request body cannot be decoded.
var ErrInvalidBody = errors.New("invalid request body")

// DecodeJSON decodes the request body into dest, rejecting unknown
// fields and oversized bodies.
func DecodeJSON(w http.ResponseWriter, r *http.Request, dest any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(dest); err != nil {
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("%w: empty body", ErrInvalidBody)
		}
		return fmt.Errorf("%w: %v", ErrInvalidBody, err)
	}

	// A second document after the first is a malformed request.
	if dec.More() {
		return fmt.Errorf("%w: unexpected trailing data", ErrInvalidBody)
	}
	return nil
}

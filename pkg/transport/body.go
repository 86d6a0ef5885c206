package transport

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cast"
)

// requestBody is an input of the http.NewRequestWithContext.
// For strings and bytes, the GetBody factory is set by the net/http package.
type requestBody struct {
	reader  io.Reader
	getBody func() (io.ReadCloser, error)
	length  int64
}

func newRequestBody(data any, contentType string) (requestBody, error) {
	switch v := data.(type) {
	case nil:
		return requestBody{}, nil
	case string:
		return requestBody{reader: strings.NewReader(v)}, nil
	case []byte:
		return requestBody{reader: bytes.NewReader(v)}, nil
	case io.ReadSeeker:
		// The stream is rewound before each attempt, it is not closed, the caller owns it
		length, err := v.Seek(0, io.SeekEnd)
		if err != nil {
			return requestBody{}, err
		}
		getBody := func() (io.ReadCloser, error) {
			if _, err := v.Seek(0, io.SeekStart); err != nil {
				return nil, err
			}
			return io.NopCloser(v), nil
		}
		reader, err := getBody()
		if err != nil {
			return requestBody{}, err
		}
		return requestBody{reader: reader, getBody: getBody, length: length}, nil
	case io.Reader:
		// The stream cannot be rewound, so it cannot be retried
		return requestBody{reader: v}, nil
	}

	if isJSONContentType(contentType) {
		body, err := json.Marshal(data)
		if err != nil {
			return requestBody{}, fmt.Errorf("cannot encode JSON body: %w", err)
		}
		return requestBody{reader: bytes.NewReader(body)}, nil
	}

	str, err := cast.ToStringE(data)
	if err != nil {
		return requestBody{}, fmt.Errorf(`unexpected body type "%T"`, data)
	}
	return requestBody{reader: strings.NewReader(str)}, nil
}

package courses

import (
	"errors"
	"fmt"
	"strings"

	"github.com/bytedance/sonic"
	"github.com/xeipuuv/gojsonschema"
)

// InvalidPayloadMessage is the client facing text for a rejected course upload.
const InvalidPayloadMessage = "Invalid course data format"

// ErrInvalidPayload is returned when an upload is not {"courses": [ {...}, ... ]}.
var ErrInvalidPayload = errors.New("invalid course data format")

const payloadSchema = `{
	"type": "object",
	"required": ["courses"],
	"properties": {
		"courses": {
			"type": "array",
			"items": {"type": "object"}
		}
	}
}`

var payloadSchemaLoader = gojsonschema.NewStringLoader(payloadSchema)

type payload struct {
	Courses []Course `json:"courses"`
}

// ValidatePayload checks an upload body and decodes its course list.
func ValidatePayload(body []byte) ([]Course, error) {
	if len(body) == 0 {
		return nil, fmt.Errorf("%w: empty body", ErrInvalidPayload)
	}

	result, err := gojsonschema.Validate(payloadSchemaLoader, gojsonschema.NewBytesLoader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}

	if !result.Valid() {
		var errMsgs []string
		for _, desc := range result.Errors() {
			errMsgs = append(errMsgs, desc.String())
		}
		return nil, fmt.Errorf("%w: %s", ErrInvalidPayload, strings.Join(errMsgs, "; "))
	}

	var p payload
	if err := sonic.Unmarshal(body, &p); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	if p.Courses == nil {
		p.Courses = []Course{}
	}
	return p.Courses, nil
}

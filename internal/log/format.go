package log

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"
)

const TimeFormat = time.RFC3339Nano

// Format formats an object into a JSON string, without any indentation or
// HTML escapes. Used to put structured values (request params, bound
// layer state) into a single logrus field without reaching for
// fmt.Sprintf("%+v").
//
// Context is used to log a warning if the conversion fails.
func Format(ctx context.Context, v interface{}) string {
	b, err := encode(v)
	if err != nil {
		G(ctx).WithError(err).Warning("could not format value")
		return ""
	}

	return string(b)
}

func encode(v interface{}) ([]byte, error) {
	return encodeBuffer(&bytes.Buffer{}, v)
}

func encodeBuffer(buf *bytes.Buffer, v interface{}) ([]byte, error) {
	enc := json.NewEncoder(buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "")

	if err := enc.Encode(v); err != nil {
		err = fmt.Errorf("could not marshal %T to JSON for logging: %w", v, err)
		return nil, err
	}

	// encoder.Encode appends a newline to the end
	return bytes.TrimSpace(buf.Bytes()), nil
}

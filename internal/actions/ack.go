package actions

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/jeabsfamily-wq/stimer/internal/room"
)

// Ack is the server's answer to one request.
type Ack struct {
	OK    bool           `json:"ok"`
	Room  *room.Snapshot `json:"room,omitempty"`
	Error *AckError      `json:"error,omitempty"`
}

// AckError is the failure detail of a rejected request. The server sends
// either a bare code string or a {code, message} object.
type AckError struct {
	Code    string `json:"code"`
	Message string `json:"message,omitempty"`
}

func (e *AckError) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var code string
		if err := json.Unmarshal(data, &code); err != nil {
			return err
		}
		e.Code = code
		return nil
	}
	type plain AckError
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*e = AckError(p)
	return nil
}

// RejectedError reports an {ok:false} acknowledgement verbatim.
type RejectedError struct {
	Action  string
	Code    string
	Message string
}

func (e *RejectedError) Error() string {
	code := e.Code
	if code == "" {
		code = "UNKNOWN"
	}
	if e.Message != "" {
		return fmt.Sprintf("%s rejected: %s (%s)", e.Action, code, e.Message)
	}
	return fmt.Sprintf("%s rejected: %s", e.Action, code)
}

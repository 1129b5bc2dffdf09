package protocol

import (
	"encoding/json"
	"fmt"
)

// Envelope is the single wire shape shared by commands, responses, and
// events. Events carry no requestId.
type Envelope struct {
	Command   string          `json:"command"`
	RequestID string          `json:"requestId,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

// ResponsePayload is the payload of a RESPONSE envelope.
type ResponsePayload struct {
	Status  string `json:"status"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
}

// FormatError reports a malformed or unknown envelope. It is handled at the
// session boundary as an error response, never as a dropped frame.
type FormatError struct {
	Code    string // CodeInvalidCommand or CodeInvalidPayload
	Message string
	// RequestID is whatever id could be salvaged from the frame, or "unknown".
	RequestID string
}

func (e *FormatError) Error() string { return e.Message }

// StartPayload is the CMD_APC_START payload.
type StartPayload struct {
	CookerID          string  `json:"cookerId"`
	TargetTemperature float64 `json:"targetTemperature"`
	Unit              string  `json:"unit"`
	Timer             int     `json:"timer"`
}

// StopPayload is the CMD_APC_STOP payload.
type StopPayload struct {
	CookerID string `json:"cookerId"`
}

// SetTargetTempPayload is the CMD_APC_SET_TARGET_TEMP payload.
type SetTargetTempPayload struct {
	CookerID          string  `json:"cookerId"`
	TargetTemperature float64 `json:"targetTemperature"`
	Unit              string  `json:"unit"`
}

// SetTimerPayload is the CMD_APC_SET_TIMER payload.
type SetTimerPayload struct {
	CookerID string `json:"cookerId"`
	Timer    int    `json:"timer"`
}

// DecodeCommand parses a raw inbound frame into an Envelope, failing closed:
// invalid JSON, a missing field, or an unknown command type all return a
// *FormatError carrying the best-effort request id for the error response.
func DecodeCommand(raw []byte) (Envelope, *FormatError) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return Envelope{}, &FormatError{
			Code:      CodeInvalidPayload,
			Message:   fmt.Sprintf("invalid JSON: %v", err),
			RequestID: "unknown",
		}
	}

	requestID := "unknown"
	if rawID, ok := fields["requestId"]; ok {
		var id string
		if err := json.Unmarshal(rawID, &id); err == nil && id != "" {
			requestID = id
		}
	}

	rawCmd, ok := fields["command"]
	if !ok {
		return Envelope{}, &FormatError{
			Code:      CodeInvalidCommand,
			Message:   "missing 'command' field",
			RequestID: requestID,
		}
	}
	var command string
	if err := json.Unmarshal(rawCmd, &command); err != nil {
		return Envelope{}, &FormatError{
			Code:      CodeInvalidCommand,
			Message:   "'command' must be a string",
			RequestID: requestID,
		}
	}
	if !IsValidCommand(command) {
		return Envelope{}, &FormatError{
			Code:      CodeInvalidCommand,
			Message:   fmt.Sprintf("unknown command: %s", command),
			RequestID: requestID,
		}
	}

	if _, ok := fields["requestId"]; !ok {
		return Envelope{}, &FormatError{
			Code:      CodeInvalidCommand,
			Message:   "missing 'requestId' field",
			RequestID: requestID,
		}
	}
	payload, ok := fields["payload"]
	if !ok {
		return Envelope{}, &FormatError{
			Code:      CodeInvalidCommand,
			Message:   "missing 'payload' field",
			RequestID: requestID,
		}
	}

	return Envelope{Command: command, RequestID: requestID, Payload: payload}, nil
}

// DecodePayload unmarshals an envelope payload into dst after verifying the
// required fields are present; json zero-value defaults would otherwise mask
// missing fields.
func DecodePayload(payload json.RawMessage, dst any, required ...string) *FormatError {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(payload, &fields); err != nil {
		return &FormatError{
			Code:    CodeInvalidPayload,
			Message: fmt.Sprintf("invalid payload: %v", err),
		}
	}
	for _, name := range required {
		if _, ok := fields[name]; !ok {
			return &FormatError{
				Code:    CodeInvalidPayload,
				Message: fmt.Sprintf("missing required field: %s", name),
			}
		}
	}
	if err := json.Unmarshal(payload, dst); err != nil {
		return &FormatError{
			Code:    CodeInvalidPayload,
			Message: fmt.Sprintf("invalid payload: %v", err),
		}
	}
	return nil
}

// Encode serializes an envelope. Payload construction is total, so this only
// fails on a payload the codec itself never produces.
func Encode(env Envelope) ([]byte, error) {
	return json.Marshal(env)
}

// BuildSuccessResponse builds an ok RESPONSE echoing requestID.
func BuildSuccessResponse(requestID string) Envelope {
	return buildResponse(requestID, ResponsePayload{Status: StatusOK})
}

// BuildErrorResponse builds an error RESPONSE with a machine-readable code.
func BuildErrorResponse(requestID, code, message string) Envelope {
	return buildResponse(requestID, ResponsePayload{
		Status:  StatusError,
		Code:    code,
		Message: message,
	})
}

func buildResponse(requestID string, payload ResponsePayload) Envelope {
	raw, _ := json.Marshal(payload)
	return Envelope{
		Command:   Response,
		RequestID: requestID,
		Payload:   raw,
	}
}

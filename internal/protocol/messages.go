package protocol

import (
	"crypto/rand"
	"encoding/hex"
)

// Command types (client -> server).
const (
	CmdStart         = "CMD_APC_START"
	CmdStop          = "CMD_APC_STOP"
	CmdSetTargetTemp = "CMD_APC_SET_TARGET_TEMP"
	CmdSetTimer      = "CMD_APC_SET_TIMER"
)

// Event and response types (server -> client).
const (
	EventState = "EVENT_APC_STATE"
	Response   = "RESPONSE"
)

// Response statuses.
const (
	StatusOK    = "ok"
	StatusError = "error"
)

// Error codes carried in error responses.
const (
	CodeDeviceBusy         = "DEVICE_BUSY"
	CodeNoActiveCook       = "NO_ACTIVE_COOK"
	CodeInvalidTemperature = "INVALID_TEMPERATURE"
	CodeInvalidTimer       = "INVALID_TIMER"
	CodeInvalidCommand     = "INVALID_COMMAND"
	CodeInvalidPayload     = "INVALID_PAYLOAD"
	CodeDeviceOffline      = "DEVICE_OFFLINE"
	CodeAuthFailed         = "AUTH_FAILED"
	CodeTokenExpired       = "TOKEN_EXPIRED"
)

var validCommands = map[string]bool{
	CmdStart:         true,
	CmdStop:          true,
	CmdSetTargetTemp: true,
	CmdSetTimer:      true,
}

// IsValidCommand reports whether cmd is a known inbound command type.
func IsValidCommand(cmd string) bool { return validCommands[cmd] }

// NewRequestID returns a 22-digit hexadecimal request id, matching the
// format the real vendor client generates.
func NewRequestID() string {
	b := make([]byte, 11)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}

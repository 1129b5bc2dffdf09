package models

import "time"

// Device states matching the real vendor cloud API.
const (
	StateIdle       = "IDLE"
	StatePreheating = "PREHEATING"
	StateCooking    = "COOKING"
	StateDone       = "DONE"
)

// Temperature units accepted in command payloads.
const (
	UnitCelsius    = "C"
	UnitFahrenheit = "F"
)

// IsValidState reports whether s is one of the four device states.
func IsValidState(s string) bool {
	switch s {
	case StateIdle, StatePreheating, StateCooking, StateDone:
		return true
	}
	return false
}

// JobInfo is the active cook configuration.
// Maps to payload.state.job in the state event.
type JobInfo struct {
	ID                string  `json:"id"`
	Mode              string  `json:"mode"` // IDLE | COOK
	TargetTemperature float64 `json:"target-temperature"`
	TemperatureUnit   string  `json:"temperature-unit"`
	CookTimeSeconds   int     `json:"cook-time-seconds"`
}

// JobStatus is the progress of the active cook.
// Maps to payload.state.job-status in the state event.
type JobStatus struct {
	State              string `json:"state"`
	CookTimeRemaining  int    `json:"cook-time-remaining"`
	JobStartSystick    int    `json:"job-start-systick"`
	StateChangeSystick int    `json:"state-change-systick"`
}

// TemperatureInfo carries the simulated sensor readings.
type TemperatureInfo struct {
	WaterTemperature  float64 `json:"water-temperature"`
	HeaterTemperature float64 `json:"heater-temperature"`
	TriacTemperature  float64 `json:"triac-temperature"`
}

// PinInfo carries the safety pin flags. 1 means the condition is present,
// except DeviceSafe where 1 means safe.
type PinInfo struct {
	DeviceSafe         int `json:"device-safe"`
	WaterLeak          int `json:"water-leak"`
	WaterLevelLow      int `json:"water-level-low"`
	WaterLevelCritical int `json:"water-level-critical"`
	MotorStuck         int `json:"motor-stuck"`
}

// NetworkInfo describes the simulated WiFi link.
type NetworkInfo struct {
	ConnectionStatus string `json:"connection-status"`
	MacAddress       string `json:"mac-address"`
	SSID             string `json:"ssid"`
	SecurityType     string `json:"security-type"`
}

// HeaterControl is the heater actuator state.
type HeaterControl struct {
	DutyCycle float64 `json:"duty-cycle"`
}

// MotorControl is the circulation pump actuator state.
type MotorControl struct {
	DutyCycle float64 `json:"duty-cycle"`
}

// MotorInfo reports the pump speed.
type MotorInfo struct {
	RPM int `json:"rpm"`
}

// CookerState is the complete snapshot of the simulated cooker. Snapshots
// are value copies; readers must never write through them.
type CookerState struct {
	CookerID        string `json:"cooker_id"`
	DeviceType      string `json:"device_type"`
	FirmwareVersion string `json:"firmware_version"`

	Job       JobInfo   `json:"job"`
	JobStatus JobStatus `json:"job_status"`

	TemperatureInfo TemperatureInfo `json:"temperature_info"`

	HeaterControl HeaterControl `json:"heater_control"`
	MotorControl  MotorControl  `json:"motor_control"`
	MotorInfo     MotorInfo     `json:"motor_info"`

	PinInfo     PinInfo     `json:"pin_info"`
	NetworkInfo NetworkInfo `json:"network_info"`

	Online    bool      `json:"online"`
	UpdatedAt time.Time `json:"updated_at"`
}

// State is a shortcut for the current device state.
func (s CookerState) State() string { return s.JobStatus.State }

// HasActiveJob reports whether a cook is in progress in any phase.
func (s CookerState) HasActiveJob() bool {
	return s.JobStatus.State != StateIdle
}

// LoggedMessage is one recorded protocol frame, kept for test introspection.
type LoggedMessage struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Direction string    `json:"direction"` // inbound | outbound
	Command   string    `json:"command,omitempty"`
	RequestID string    `json:"requestId,omitempty"`
	Raw       string    `json:"raw"`
}

// Message directions for the history log.
const (
	DirectionInbound  = "inbound"
	DirectionOutbound = "outbound"
)

package protocol

import (
	"encoding/json"

	"sousvide_simulator/internal/models"
)

// statePayload mirrors the full EVENT_APC_STATE structure of the vendor
// cloud. Sections the simulator does not model (audio, cap-touch) are
// emitted with their idle defaults so clients parse an unmodified shape.
type statePayload struct {
	CookerID string       `json:"cookerId"`
	Type     string       `json:"type"`
	State    deviceDetail `json:"state"`
}

type deviceDetail struct {
	Audio           audioInfo              `json:"audio"`
	CapTouch        capTouchInfo           `json:"cap-touch"`
	FirmwareInfo    firmwareInfo           `json:"firmware-info"`
	HeaterControl   models.HeaterControl   `json:"heater-control"`
	Job             models.JobInfo         `json:"job"`
	JobStatus       models.JobStatus       `json:"job-status"`
	MotorControl    models.MotorControl    `json:"motor-control"`
	MotorInfo       models.MotorInfo       `json:"motor-info"`
	NetworkInfo     models.NetworkInfo     `json:"network-info"`
	PinInfo         models.PinInfo         `json:"pin-info"`
	SystemInfo      systemInfo             `json:"system-info"`
	TemperatureInfo models.TemperatureInfo `json:"temperature-info"`
}

type audioInfo struct {
	FileName string `json:"file-name"`
	Volume   int    `json:"volume"`
}

type capTouchInfo struct {
	MinusButton             int `json:"minus-button"`
	PlayButton              int `json:"play-button"`
	PlusButton              int `json:"plus-button"`
	TargetTemperatureButton int `json:"target-temperature-button"`
	TimerButton             int `json:"timer-button"`
	WaterTemperatureButton  int `json:"water-temperature-button"`
}

type firmwareInfo struct {
	FirmwareVersion         string `json:"firmware-version"`
	FirmwareUpdateAvailable bool   `json:"firmware-update-available"`
}

type systemInfo struct {
	FirmwareVersion string `json:"firmware-version"`
	McuTemperature  int    `json:"mcu-temperature"`
	HeapSize        int    `json:"heap-size"`
}

// BuildStateEvent builds an EVENT_APC_STATE envelope from a snapshot.
// Events carry no requestId.
func BuildStateEvent(snapshot models.CookerState) Envelope {
	payload := statePayload{
		CookerID: snapshot.CookerID,
		Type:     snapshot.DeviceType,
		State: deviceDetail{
			Audio: audioInfo{Volume: 50},
			FirmwareInfo: firmwareInfo{
				FirmwareVersion: snapshot.FirmwareVersion,
			},
			HeaterControl:   snapshot.HeaterControl,
			Job:             snapshot.Job,
			JobStatus:       snapshot.JobStatus,
			MotorControl:    snapshot.MotorControl,
			MotorInfo:       snapshot.MotorInfo,
			NetworkInfo:     snapshot.NetworkInfo,
			PinInfo:         snapshot.PinInfo,
			SystemInfo: systemInfo{
				FirmwareVersion: snapshot.FirmwareVersion,
				McuTemperature:  35,
				HeapSize:        102400,
			},
			TemperatureInfo: snapshot.TemperatureInfo,
		},
	}
	raw, _ := json.Marshal(payload)
	return Envelope{Command: EventState, Payload: raw}
}

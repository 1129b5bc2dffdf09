package service

import (
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"sousvide_simulator/internal/config"
	"sousvide_simulator/internal/logger"
	"sousvide_simulator/internal/models"
	"sousvide_simulator/internal/protocol"

	"github.com/google/uuid"
)

// CommandError is a synchronous, authoritative command rejection. It is
// returned to the client as an error RESPONSE and never terminates the
// session.
type CommandError struct {
	Code    string
	Message string
}

func (e *CommandError) Error() string { return e.Message }

func commandErrorf(code, format string, args ...any) *CommandError {
	return &CommandError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// ErrInvalidForcedState is returned when forceState names an unknown state.
var ErrInvalidForcedState = errors.New("invalid state: must be one of IDLE, PREHEATING, COOKING, DONE")

// Bounds are the configured validation limits for cook parameters.
type Bounds struct {
	MinTempCelsius  float64
	MaxTempCelsius  float64
	MinTimerSeconds int
	MaxTimerSeconds int
}

// DeviceService owns the canonical cooker state. A single mutex serializes
// commands, physics ticks, and control-plane writes; no caller ever holds it
// across network I/O.
type DeviceService struct {
	mu      sync.Mutex
	state   models.CookerState
	physics PhysicsParams
	bounds  Bounds

	// timerRemaining keeps fractional precision between ticks; the snapshot
	// carries the truncated seconds.
	timerRemaining float64

	timeScale float64
	rng       *rand.Rand
	now       func() time.Time
	log       *logger.Logger
}

// NewDeviceService builds the state machine from configuration, with the
// water at ambient and no active job.
func NewDeviceService(cfg *config.Config, log *logger.Logger) *DeviceService {
	seed := cfg.PhysicsSeed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	d := &DeviceService{
		physics: PhysicsParams{
			AmbientTemp:     cfg.AmbientTemp,
			HeatingRate:     cfg.HeatingRate,
			CoolingRate:     cfg.CoolingRate,
			TempTolerance:   cfg.TempTolerance,
			TempOscillation: cfg.TempOscillation,
		},
		bounds: Bounds{
			MinTempCelsius:  cfg.MinTempCelsius,
			MaxTempCelsius:  cfg.MaxTempCelsius,
			MinTimerSeconds: cfg.MinTimerSeconds,
			MaxTimerSeconds: cfg.MaxTimerSeconds,
		},
		timeScale: cfg.TimeScale,
		rng:       rand.New(rand.NewSource(seed)),
		now:       time.Now,
		log:       log,
	}
	d.state = models.CookerState{
		CookerID:        cfg.CookerID,
		DeviceType:      cfg.DeviceType,
		FirmwareVersion: cfg.FirmwareVersion,
		Job: models.JobInfo{
			Mode:            models.StateIdle,
			TemperatureUnit: models.UnitCelsius,
		},
		JobStatus: models.JobStatus{State: models.StateIdle},
		TemperatureInfo: models.TemperatureInfo{
			WaterTemperature:  cfg.AmbientTemp,
			HeaterTemperature: cfg.AmbientTemp,
			TriacTemperature:  25,
		},
		PinInfo: models.PinInfo{DeviceSafe: 1},
		NetworkInfo: models.NetworkInfo{
			ConnectionStatus: "connected-station",
			MacAddress:       "AA:BB:CC:DD:EE:FF",
			SSID:             "SimulatorNetwork",
			SecurityType:     "WPA2",
		},
		Online:    true,
		UpdatedAt: d.now().UTC(),
	}
	return d
}

func fahrenheitToCelsius(v float64) float64 { return (v - 32) * 5 / 9 }

// toCelsius normalizes a command temperature to the engineering unit.
func toCelsius(value float64, unit string) float64 {
	if unit == models.UnitFahrenheit {
		return fahrenheitToCelsius(value)
	}
	return value
}

func (d *DeviceService) validateTemperature(tempC float64) *CommandError {
	if tempC < d.bounds.MinTempCelsius {
		return commandErrorf(protocol.CodeInvalidTemperature,
			"Temperature %.1f°C is below minimum %.1f°C", tempC, d.bounds.MinTempCelsius)
	}
	if tempC > d.bounds.MaxTempCelsius {
		return commandErrorf(protocol.CodeInvalidTemperature,
			"Temperature %.1f°C is above maximum %.1f°C", tempC, d.bounds.MaxTempCelsius)
	}
	return nil
}

func (d *DeviceService) validateTimer(seconds int) *CommandError {
	if seconds < d.bounds.MinTimerSeconds {
		return commandErrorf(protocol.CodeInvalidTimer,
			"Timer %ds is below minimum %ds", seconds, d.bounds.MinTimerSeconds)
	}
	if seconds > d.bounds.MaxTimerSeconds {
		return commandErrorf(protocol.CodeInvalidTimer,
			"Timer %ds is above maximum %ds", seconds, d.bounds.MaxTimerSeconds)
	}
	return nil
}

// Start validates the cook parameters, creates the job, and transitions
// IDLE -> PREHEATING. A cook already in progress is rejected untouched.
func (d *DeviceService) Start(targetTemp float64, unit string, timerSeconds int) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	switch d.state.JobStatus.State {
	case models.StatePreheating, models.StateCooking:
		return commandErrorf(protocol.CodeDeviceBusy, "Device is already cooking")
	}

	tempC := toCelsius(targetTemp, unit)
	if err := d.validateTemperature(tempC); err != nil {
		return err
	}
	if err := d.validateTimer(timerSeconds); err != nil {
		return err
	}

	d.state.Job = models.JobInfo{
		ID:                "cook-" + uuid.NewString(),
		Mode:              "COOK",
		TargetTemperature: tempC,
		TemperatureUnit:   models.UnitCelsius,
		CookTimeSeconds:   timerSeconds,
	}
	d.state.JobStatus.State = models.StatePreheating
	d.state.JobStatus.CookTimeRemaining = timerSeconds
	d.timerRemaining = float64(timerSeconds)
	d.state.HeaterControl.DutyCycle = 100
	d.state.MotorControl.DutyCycle = 100
	d.state.MotorInfo.RPM = 1200
	d.state.UpdatedAt = d.now().UTC()

	d.log.Infow("cook started", "target_c", tempC, "timer_s", timerSeconds, "cook_id", d.state.Job.ID)
	return nil
}

// Stop clears the job and forces IDLE from any state, zeroing the timer.
func (d *DeviceService) Stop() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.state.JobStatus.State == models.StateIdle {
		return commandErrorf(protocol.CodeNoActiveCook, "No active cook to stop")
	}

	d.clearJobLocked()
	d.state.UpdatedAt = d.now().UTC()
	d.log.Infow("cook stopped")
	return nil
}

func (d *DeviceService) clearJobLocked() {
	d.state.JobStatus.State = models.StateIdle
	d.state.Job.ID = ""
	d.state.Job.Mode = models.StateIdle
	d.state.Job.CookTimeSeconds = 0
	d.state.JobStatus.CookTimeRemaining = 0
	d.timerRemaining = 0
	d.state.HeaterControl.DutyCycle = 0
	d.state.MotorControl.DutyCycle = 0
	d.state.MotorInfo.RPM = 0
}

// SetTargetTemperature updates the live job target without resetting the
// timer.
func (d *DeviceService) SetTargetTemperature(value float64, unit string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	tempC := toCelsius(value, unit)
	if err := d.validateTemperature(tempC); err != nil {
		return err
	}
	d.state.Job.TargetTemperature = tempC
	d.state.UpdatedAt = d.now().UTC()
	d.log.Infow("target temperature set", "target_c", tempC)
	return nil
}

// SetTimer updates cook time and remaining time atomically.
func (d *DeviceService) SetTimer(seconds int) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.validateTimer(seconds); err != nil {
		return err
	}
	d.state.Job.CookTimeSeconds = seconds
	d.state.JobStatus.CookTimeRemaining = seconds
	d.timerRemaining = float64(seconds)
	d.state.UpdatedAt = d.now().UTC()
	d.log.Infow("timer set", "timer_s", seconds)
	return nil
}

// Advance applies one physics step of dt simulated seconds and performs any
// guarded transition. Invoked only by the orchestrator tick.
func (d *DeviceService) Advance(dt float64) {
	if dt <= 0 {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	switch d.state.JobStatus.State {
	case models.StatePreheating:
		next, reached := d.physics.Heat(
			d.state.TemperatureInfo.WaterTemperature,
			d.state.Job.TargetTemperature,
			dt,
		)
		d.state.TemperatureInfo.WaterTemperature = next
		if reached {
			d.state.TemperatureInfo.WaterTemperature = d.state.Job.TargetTemperature
			d.state.JobStatus.State = models.StateCooking
			d.log.Infow("reached target temperature, starting timer",
				"target_c", d.state.Job.TargetTemperature)
		}

	case models.StateCooking:
		d.state.TemperatureInfo.WaterTemperature = d.physics.Hold(d.state.Job.TargetTemperature, d.rng)
		remaining, expired := CountDown(d.timerRemaining, dt)
		d.timerRemaining = remaining
		d.state.JobStatus.CookTimeRemaining = int(remaining)
		if expired {
			d.state.JobStatus.State = models.StateDone
			d.state.JobStatus.CookTimeRemaining = 0
			d.log.Infow("cook complete, timer expired")
		}

	case models.StateDone:
		d.state.TemperatureInfo.WaterTemperature = d.physics.Hold(d.state.Job.TargetTemperature, d.rng)

	case models.StateIdle:
		d.state.TemperatureInfo.WaterTemperature = d.physics.Cool(d.state.TemperatureInfo.WaterTemperature, dt)
	}

	d.state.UpdatedAt = d.now().UTC()
}

// Snapshot returns a read-only copy of the device state for broadcast and
// introspection.
func (d *DeviceService) Snapshot() models.CookerState {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state
}

// Reset restores the initial state: IDLE, no job, water at ambient, pin
// flags cleared. A non-nil ambientTemp overrides the configured ambient.
func (d *DeviceService) Reset(ambientTemp *float64) models.CookerState {
	d.mu.Lock()
	defer d.mu.Unlock()

	if ambientTemp != nil {
		d.physics.AmbientTemp = *ambientTemp
	}
	d.clearJobLocked()
	d.state.Job.TargetTemperature = 0
	d.state.TemperatureInfo.WaterTemperature = d.physics.AmbientTemp
	d.state.TemperatureInfo.HeaterTemperature = d.physics.AmbientTemp
	d.state.PinInfo = models.PinInfo{DeviceSafe: 1}
	d.state.UpdatedAt = d.now().UTC()
	d.log.Infow("simulator reset to initial state")
	return d.state
}

// ForceStateParams are the optional field overrides for forceState. Nil
// fields are left untouched.
type ForceStateParams struct {
	State          *string
	WaterTemp      *float64
	TargetTemp     *float64
	Timer          *int
	TimerRemaining *int
}

// ForceState overwrites state fields directly, bypassing transition guards.
// It still holds the device mutex, so it is atomic relative to commands and
// ticks.
func (d *DeviceService) ForceState(p ForceStateParams) (models.CookerState, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if p.State != nil {
		forced := *p.State
		if !models.IsValidState(forced) {
			return models.CookerState{}, fmt.Errorf("%w: got %q", ErrInvalidForcedState, forced)
		}
		d.state.JobStatus.State = forced
		d.state.Job.Mode = forced
	}
	if p.WaterTemp != nil {
		d.state.TemperatureInfo.WaterTemperature = *p.WaterTemp
	}
	if p.TargetTemp != nil {
		d.state.Job.TargetTemperature = *p.TargetTemp
	}
	if p.Timer != nil {
		d.state.Job.CookTimeSeconds = *p.Timer
	}
	if p.TimerRemaining != nil {
		d.state.JobStatus.CookTimeRemaining = *p.TimerRemaining
		d.timerRemaining = float64(*p.TimerRemaining)
	}
	d.state.UpdatedAt = d.now().UTC()
	return d.state, nil
}

// SetOnline flips the simulated connectivity flag.
func (d *DeviceService) SetOnline(online bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.state.Online = online
}

// Online reports the simulated connectivity flag.
func (d *DeviceService) Online() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.state.Online
}

// SetTimeScale changes the multiplier applied to wall-clock deltas before
// they reach the physics model.
func (d *DeviceService) SetTimeScale(scale float64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.timeScale = scale
}

// TimeScale returns the current time acceleration factor.
func (d *DeviceService) TimeScale() float64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.timeScale
}

// ApplyFault sets the pin flags for a physical fault. Flags are advisory:
// they surface in broadcasts but never stop the job themselves.
func (d *DeviceService) ApplyFault(faultType string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	switch faultType {
	case FaultWaterLevelLow:
		d.state.PinInfo.WaterLevelLow = 1
	case FaultWaterLevelCritical:
		d.state.PinInfo.WaterLevelCritical = 1
		d.state.PinInfo.DeviceSafe = 0
	case FaultMotorStuck:
		d.state.PinInfo.MotorStuck = 1
		d.state.MotorInfo.RPM = 0
	case FaultHeaterOvertemp:
		d.state.TemperatureInfo.HeaterTemperature = 150
		d.state.HeaterControl.DutyCycle = 0
		d.state.PinInfo.DeviceSafe = 0
	case FaultTriacOvertemp:
		d.state.TemperatureInfo.TriacTemperature = 100
		d.state.PinInfo.DeviceSafe = 0
	case FaultWaterLeak:
		d.state.PinInfo.WaterLeak = 1
		d.state.PinInfo.DeviceSafe = 0
	}
	d.state.UpdatedAt = d.now().UTC()
}

// ClearFaultEffect reverts the state changes of ApplyFault.
func (d *DeviceService) ClearFaultEffect(faultType string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	active := d.state.JobStatus.State == models.StateCooking ||
		d.state.JobStatus.State == models.StatePreheating

	switch faultType {
	case FaultWaterLevelLow:
		d.state.PinInfo.WaterLevelLow = 0
	case FaultWaterLevelCritical:
		d.state.PinInfo.WaterLevelCritical = 0
		d.state.PinInfo.DeviceSafe = 1
	case FaultMotorStuck:
		d.state.PinInfo.MotorStuck = 0
		if active {
			d.state.MotorInfo.RPM = 1200
		}
	case FaultHeaterOvertemp:
		d.state.TemperatureInfo.HeaterTemperature = d.state.TemperatureInfo.WaterTemperature
		if active {
			d.state.HeaterControl.DutyCycle = 100
		}
		d.state.PinInfo.DeviceSafe = 1
	case FaultTriacOvertemp:
		d.state.TemperatureInfo.TriacTemperature = 40
		d.state.PinInfo.DeviceSafe = 1
	case FaultWaterLeak:
		d.state.PinInfo.WaterLeak = 0
		d.state.PinInfo.DeviceSafe = 1
	}
	d.state.UpdatedAt = d.now().UTC()
}

package service

import (
	"fmt"
	"math/rand"
	"sync"
	"time"

	"sousvide_simulator/internal/config"
	"sousvide_simulator/internal/logger"
	"sousvide_simulator/internal/models"
)

// Injectable fault types.
const (
	FaultDeviceOffline       = "device_offline"
	FaultWaterLevelLow       = "water_level_low"
	FaultWaterLevelCritical  = "water_level_critical"
	FaultMotorStuck          = "motor_stuck"
	FaultNetworkLatency      = "network_latency"
	FaultIntermittentFailure = "intermittent_failure"
	FaultHeaterOvertemp      = "heater_overtemp"
	FaultTriacOvertemp       = "triac_overtemp"
	FaultWaterLeak           = "water_leak"
)

var validFaults = map[string]bool{
	FaultDeviceOffline:       true,
	FaultWaterLevelLow:       true,
	FaultWaterLevelCritical:  true,
	FaultMotorStuck:          true,
	FaultNetworkLatency:      true,
	FaultIntermittentFailure: true,
	FaultHeaterOvertemp:      true,
	FaultTriacOvertemp:       true,
	FaultWaterLeak:           true,
}

// FaultTypes lists every injectable fault type.
func FaultTypes() []string {
	return []string{
		FaultDeviceOffline, FaultWaterLevelLow, FaultWaterLevelCritical,
		FaultMotorStuck, FaultNetworkLatency, FaultIntermittentFailure,
		FaultHeaterOvertemp, FaultTriacOvertemp, FaultWaterLeak,
	}
}

// FaultParams configure a fault injection.
type FaultParams struct {
	Type            string
	DurationSeconds *float64 // auto-clear after this many wall seconds
	LatencyMS       *int     // network_latency only
	FailureRate     *float64 // intermittent_failure only
}

// FaultInfo describes one active or just-toggled fault.
type FaultInfo struct {
	Type            string   `json:"error_type"`
	Enabled         bool     `json:"enabled"`
	DurationSeconds *float64 `json:"duration,omitempty"`
	LatencyMS       int      `json:"latency_ms,omitempty"`
	FailureRate     float64  `json:"failure_rate,omitempty"`
}

// SessionDropper lets the scenario service drop live protocol sessions
// without importing the session layer.
type SessionDropper interface {
	DisconnectAll(reason string)
}

type faultState struct {
	enabled     bool
	duration    *float64
	latencyMS   int
	failureRate float64
	clearTimer  *time.Timer
}

// ScenarioService is the control-plane coordinator: it mutates the shared
// device through the device's own mutex-guarded methods and owns the
// auto-revert timers for offline mode and fault durations.
type ScenarioService struct {
	mu sync.Mutex

	device  *DeviceService
	dropper SessionDropper

	faults       map[string]*faultState
	offlineTimer *time.Timer

	rng *rand.Rand
	log *logger.Logger
}

// NewScenarioService builds the control-plane service over the shared
// device.
func NewScenarioService(device *DeviceService, cfg *config.Config, log *logger.Logger) *ScenarioService {
	seed := cfg.PhysicsSeed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	faults := make(map[string]*faultState, len(validFaults))
	for t := range validFaults {
		faults[t] = &faultState{}
	}
	return &ScenarioService{
		device: device,
		faults: faults,
		rng:    rand.New(rand.NewSource(seed)),
		log:    log,
	}
}

// SetSessionDropper injects the session layer after construction; the hub
// depends on services, not the other way around.
func (s *ScenarioService) SetSessionDropper(d SessionDropper) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dropper = d
}

// Reset restores the device to its initial state.
func (s *ScenarioService) Reset(ambientTemp *float64) models.CookerState {
	return s.device.Reset(ambientTemp)
}

// ForceState overwrites device fields directly, bypassing transition guards.
func (s *ScenarioService) ForceState(p ForceStateParams) (models.CookerState, error) {
	return s.device.ForceState(p)
}

// SetOffline toggles offline mode: new connections are refused and live
// sessions dropped. A duration auto-reverts; a later call of the same kind
// cancels the pending revert.
func (s *ScenarioService) SetOffline(offline bool, durationSeconds *float64) {
	s.mu.Lock()
	if s.offlineTimer != nil {
		s.offlineTimer.Stop()
		s.offlineTimer = nil
	}
	dropper := s.dropper
	if offline && durationSeconds != nil {
		d := time.Duration(*durationSeconds * float64(time.Second))
		s.offlineTimer = time.AfterFunc(d, func() { s.SetOffline(false, nil) })
	}
	s.mu.Unlock()

	s.device.SetOnline(!offline)
	if offline && dropper != nil {
		dropper.DisconnectAll("Device offline")
	}
	s.log.Infow("offline mode changed", "offline", offline)
}

// Offline reports whether the simulator currently refuses connections.
func (s *ScenarioService) Offline() bool {
	return !s.device.Online()
}

// SetTimeScale changes the wall-clock multiplier the orchestrator applies.
func (s *ScenarioService) SetTimeScale(scale float64) error {
	if scale <= 0 {
		return fmt.Errorf("time_scale must be positive, got %v", scale)
	}
	s.device.SetTimeScale(scale)
	s.log.Infow("time scale set", "time_scale", scale)
	return nil
}

// TimeScale returns the current multiplier.
func (s *ScenarioService) TimeScale() float64 {
	return s.device.TimeScale()
}

// TriggerFault activates a fault. Physical faults set pin flags on the
// shared state; network faults affect delivery only. A duration schedules an
// auto-clear, replacing any pending one for the same type.
func (s *ScenarioService) TriggerFault(p FaultParams) (FaultInfo, error) {
	if !validFaults[p.Type] {
		return FaultInfo{}, fmt.Errorf("invalid error_type %q, must be one of %v", p.Type, FaultTypes())
	}

	s.mu.Lock()
	f := s.faults[p.Type]
	f.enabled = true
	f.duration = p.DurationSeconds
	if f.clearTimer != nil {
		f.clearTimer.Stop()
		f.clearTimer = nil
	}
	switch p.Type {
	case FaultNetworkLatency:
		f.latencyMS = 1000
		if p.LatencyMS != nil {
			f.latencyMS = *p.LatencyMS
		}
	case FaultIntermittentFailure:
		f.failureRate = 0.3
		if p.FailureRate != nil {
			f.failureRate = *p.FailureRate
		}
	}
	if p.DurationSeconds != nil {
		d := time.Duration(*p.DurationSeconds * float64(time.Second))
		faultType := p.Type
		f.clearTimer = time.AfterFunc(d, func() { _, _ = s.ClearFault(faultType) })
	}
	info := faultInfoLocked(p.Type, f)
	s.mu.Unlock()

	switch p.Type {
	case FaultDeviceOffline:
		s.SetOffline(true, p.DurationSeconds)
	case FaultNetworkLatency, FaultIntermittentFailure:
		// Delivery-level faults; no device state change.
	default:
		s.device.ApplyFault(p.Type)
	}

	s.log.Infow("fault triggered", "error_type", p.Type)
	return info, nil
}

// ClearFault deactivates a fault and reverts its state effects.
func (s *ScenarioService) ClearFault(faultType string) (FaultInfo, error) {
	if !validFaults[faultType] {
		return FaultInfo{}, fmt.Errorf("invalid error_type %q, must be one of %v", faultType, FaultTypes())
	}

	s.mu.Lock()
	f := s.faults[faultType]
	f.enabled = false
	f.duration = nil
	if f.clearTimer != nil {
		f.clearTimer.Stop()
		f.clearTimer = nil
	}
	info := faultInfoLocked(faultType, f)
	s.mu.Unlock()

	switch faultType {
	case FaultDeviceOffline:
		s.SetOffline(false, nil)
	case FaultNetworkLatency, FaultIntermittentFailure:
		// Nothing to revert on the device.
	default:
		s.device.ClearFaultEffect(faultType)
	}

	s.log.Infow("fault cleared", "error_type", faultType)
	return info, nil
}

// ActiveFaults lists the currently enabled faults.
func (s *ScenarioService) ActiveFaults() []FaultInfo {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]FaultInfo, 0, len(s.faults))
	for _, t := range FaultTypes() {
		if f := s.faults[t]; f.enabled {
			out = append(out, faultInfoLocked(t, f))
		}
	}
	return out
}

// CommandLatency returns the injected delivery delay for command handling.
func (s *ScenarioService) CommandLatency() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	f := s.faults[FaultNetworkLatency]
	if !f.enabled {
		return 0
	}
	return time.Duration(f.latencyMS) * time.Millisecond
}

// ShouldFailCommand rolls the intermittent-failure rate for one command.
func (s *ScenarioService) ShouldFailCommand() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	f := s.faults[FaultIntermittentFailure]
	if !f.enabled {
		return false
	}
	return s.rng.Float64() < f.failureRate
}

func faultInfoLocked(faultType string, f *faultState) FaultInfo {
	return FaultInfo{
		Type:            faultType,
		Enabled:         f.enabled,
		DurationSeconds: f.duration,
		LatencyMS:       f.latencyMS,
		FailureRate:     f.failureRate,
	}
}

package service

import (
	"context"
	"time"

	"sousvide_simulator/internal/config"
	"sousvide_simulator/internal/logger"
	"sousvide_simulator/internal/models"
	"sousvide_simulator/internal/repository"
)

// Device exposes the protocol-facing operations of the state machine.
// Every mutation is atomic with respect to the others and to the physics tick.
type Device interface {
	Start(targetTemp float64, unit string, timerSeconds int) error
	Stop() error
	SetTargetTemperature(value float64, unit string) error
	SetTimer(seconds int) error
	Snapshot() models.CookerState
}

// Tokens stands in for the vendor's identity provider.
type Tokens interface {
	Authenticate(email, password string) (Credentials, error)
	Refresh(refreshToken string) (Credentials, error)
	Validate(token string) TokenStatus
	ForceExpiry(enabled bool)
}

// Scenario is the control-plane surface for test orchestration. Mutations go
// through the same mutual exclusion as device commands.
type Scenario interface {
	Reset(ambientTemp *float64) models.CookerState
	ForceState(p ForceStateParams) (models.CookerState, error)
	SetOffline(offline bool, durationSeconds *float64)
	SetTimeScale(scale float64) error
	TriggerFault(p FaultParams) (FaultInfo, error)
	ClearFault(faultType string) (FaultInfo, error)
	ActiveFaults() []FaultInfo
	CommandLatency() time.Duration
	ShouldFailCommand() bool
	Offline() bool
	TimeScale() float64
}

// MessageLog records protocol frames for test introspection.
type MessageLog interface {
	Record(ctx context.Context, direction string, raw []byte)
	List(ctx context.Context, limit int, direction string) ([]models.LoggedMessage, error)
}

// Simulator runs the clock tick loop that advances the device physics.
// Stop via context cancellation in main() for graceful shutdown.
type Simulator interface {
	Run(ctx context.Context, tick time.Duration)
}

// Service aggregates all sub-services.
type Service struct {
	Device
	Tokens
	Scenario
	Messages MessageLog
	Simulator
}

// NewService wires the repository layer and configuration into concrete
// services.
func NewService(repos *repository.Repository, cfg *config.Config, log *logger.Logger) *Service {
	device := NewDeviceService(cfg, log)
	return &Service{
		Device:    device,
		Tokens:    NewTokenService(cfg, log),
		Scenario:  NewScenarioService(device, cfg, log),
		Messages:  NewMessageLogService(repos.Messages),
		Simulator: NewOrchestrator(device, log),
	}
}

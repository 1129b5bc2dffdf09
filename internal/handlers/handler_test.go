package handlers

import (
	"context"
	"sync"

	"sousvide_simulator/internal/config"
	"sousvide_simulator/internal/logger"
	"sousvide_simulator/internal/models"
	"sousvide_simulator/internal/repository"
	"sousvide_simulator/internal/service"

	"github.com/gin-gonic/gin"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// memMessageRepo keeps logged frames in memory so handler tests need no
// database.
type memMessageRepo struct {
	mu      sync.Mutex
	entries []models.LoggedMessage
}

func (f *memMessageRepo) Append(ctx context.Context, m models.LoggedMessage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries = append(f.entries, m)
	return nil
}

func (f *memMessageRepo) List(ctx context.Context, limit int, direction string) ([]models.LoggedMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.LoggedMessage
	for _, m := range f.entries {
		if direction == "" || m.Direction == direction {
			out = append(out, m)
		}
	}
	if len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

func testConfig() *config.Config {
	return &config.Config{
		AmbientTemp:     22,
		HeatingRate:     60,
		CoolingRate:     30,
		TempTolerance:   0.5,
		TempOscillation: 0,

		TimeScale:                1,
		BroadcastIntervalIdle:    30,
		BroadcastIntervalCooking: 2,

		CookerID:        "anova sim-0000000000",
		DeviceType:      "pro",
		FirmwareVersion: "3.3.01",

		ValidTokens:   []string{"valid-test-token"},
		ExpiredTokens: []string{"expired-test-token"},
		Accounts:      map[string]string{"test@example.com": "testpassword123"},
		TokenExpiry:   3600,

		MinTempCelsius:  40,
		MaxTempCelsius:  100,
		MinTimerSeconds: 60,
		MaxTimerSeconds: 359940,

		PhysicsSeed: 1,
	}
}

// newTestHandler wires real services over an in-memory message log.
func newTestHandler() (*Handler, *service.Service) {
	cfg := testConfig()
	log := logger.Get(logger.ErrorLevel)
	repos := &repository.Repository{Messages: &memMessageRepo{}}
	services := service.NewService(repos, cfg, log)
	return NewHandler(services, cfg, log), services
}

package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"sousvide_simulator/internal/models"
	"sousvide_simulator/internal/service"

	"github.com/gin-gonic/gin"
)

// Common status strings for control-plane responses.
const (
	statusReset     = "reset"
	statusUpdated   = "updated"
	statusTriggered = "triggered"
	statusCleared   = "cleared"
)

// controlError writes the control-plane error shape and logs the cause.
func (h *Handler) controlError(c *gin.Context, httpCode int, errCode, msg string, err error) {
	if h.log != nil && err != nil {
		h.log.Errorw("control_request_failed", "code", errCode, "err", err)
	}
	c.JSON(httpCode, gin.H{
		"error":   errCode,
		"message": msg,
	})
}

// ResetRequest optionally overrides the ambient temperature the simulator
// resets to.
type ResetRequest struct {
	AmbientTemp *float64 `json:"ambient_temp,omitempty" example:"22"`
}

// SetStateRequest overrides device state fields directly. All fields are
// optional; only the provided ones are applied.
type SetStateRequest struct {
	State          *string  `json:"state,omitempty" example:"COOKING"`
	Temperature    *float64 `json:"temperature,omitempty" example:"64.5"`
	TargetTemp     *float64 `json:"target_temperature,omitempty" example:"65"`
	Timer          *int     `json:"timer,omitempty" example:"3600"`
	TimerRemaining *int     `json:"timer_remaining,omitempty" example:"1800"`
}

// SetOfflineRequest toggles offline mode, optionally for a limited time.
type SetOfflineRequest struct {
	Offline  *bool    `json:"offline" example:"true"`
	Duration *float64 `json:"duration,omitempty" example:"10"`
}

// SetTimeScaleRequest changes the simulated-time multiplier.
type SetTimeScaleRequest struct {
	TimeScale *float64 `json:"time_scale" example:"60"`
}

// TriggerErrorRequest injects a fault condition.
type TriggerErrorRequest struct {
	ErrorType   string   `json:"error_type" example:"network_latency"`
	Duration    *float64 `json:"duration,omitempty" example:"10"`
	LatencyMS   *int     `json:"latency_ms,omitempty" example:"1000"`
	FailureRate *float64 `json:"failure_rate,omitempty" example:"0.3"`
}

// ClearErrorRequest clears a previously injected fault.
type ClearErrorRequest struct {
	ErrorType string `json:"error_type" example:"network_latency"`
}

// @Summary      Reset simulator to initial state
// @Tags         control
// @Accept       json
// @Produce      json
// @Param        body  body  ResetRequest  false  "Optional overrides"
// @Success      200   {object}  map[string]interface{}
// @Failure      400   {object}  map[string]string
// @Router       /reset [post]
func (h *Handler) reset(c *gin.Context) {
	var req ResetRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			h.controlError(c, http.StatusBadRequest, "INVALID_JSON", "Invalid JSON body", err)
			return
		}
	}

	state := h.services.Scenario.Reset(req.AmbientTemp)
	h.broadcastState()

	c.JSON(http.StatusOK, gin.H{
		"status":      statusReset,
		"state":       state.State(),
		"temperature": state.TemperatureInfo.WaterTemperature,
	})
}

// @Summary      Force device state fields
// @Description  Bypasses transition guards; only provided fields change
// @Tags         control
// @Accept       json
// @Produce      json
// @Param        body  body  SetStateRequest  true  "Field overrides"
// @Success      200   {object}  map[string]interface{}
// @Failure      400   {object}  map[string]string
// @Router       /set-state [post]
func (h *Handler) setState(c *gin.Context) {
	var req SetStateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.controlError(c, http.StatusBadRequest, "INVALID_JSON", "Invalid JSON body", err)
		return
	}

	state, err := h.services.Scenario.ForceState(service.ForceStateParams{
		State:          req.State,
		WaterTemp:      req.Temperature,
		TargetTemp:     req.TargetTemp,
		Timer:          req.Timer,
		TimerRemaining: req.TimerRemaining,
	})
	if err != nil {
		if errors.Is(err, service.ErrInvalidForcedState) {
			h.controlError(c, http.StatusBadRequest, "INVALID_STATE", err.Error(), err)
			return
		}
		h.controlError(c, http.StatusInternalServerError, "SET_STATE_FAILED", err.Error(), err)
		return
	}

	// Connected clients see the forced state right away.
	h.broadcastState()

	c.JSON(http.StatusOK, gin.H{
		"status":             statusUpdated,
		"state":              state.State(),
		"temperature":        state.TemperatureInfo.WaterTemperature,
		"target_temperature": state.Job.TargetTemperature,
		"timer_remaining":    state.JobStatus.CookTimeRemaining,
	})
}

// @Summary      Toggle offline mode
// @Description  Offline refuses new connections and drops live sessions
// @Tags         control
// @Accept       json
// @Produce      json
// @Param        body  body  SetOfflineRequest  true  "Offline toggle"
// @Success      200   {object}  map[string]interface{}
// @Failure      400   {object}  map[string]string
// @Router       /set-offline [post]
func (h *Handler) setOffline(c *gin.Context) {
	var req SetOfflineRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.controlError(c, http.StatusBadRequest, "INVALID_JSON", "Invalid JSON body", err)
		return
	}

	offline := true
	if req.Offline != nil {
		offline = *req.Offline
	}
	h.services.Scenario.SetOffline(offline, req.Duration)

	status := "online"
	if offline {
		status = "offline"
	}
	c.JSON(http.StatusOK, gin.H{
		"status":               status,
		"clients_disconnected": h.hub.Count() == 0,
	})
}

// @Summary      Set time acceleration
// @Tags         control
// @Accept       json
// @Produce      json
// @Param        body  body  SetTimeScaleRequest  true  "Multiplier"
// @Success      200   {object}  map[string]interface{}
// @Failure      400   {object}  map[string]string
// @Router       /set-time-scale [post]
func (h *Handler) setTimeScale(c *gin.Context) {
	var req SetTimeScaleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.controlError(c, http.StatusBadRequest, "INVALID_JSON", "Invalid JSON body", err)
		return
	}
	if req.TimeScale == nil {
		h.controlError(c, http.StatusBadRequest, "MISSING_TIME_SCALE", "time_scale is required", nil)
		return
	}
	if err := h.services.Scenario.SetTimeScale(*req.TimeScale); err != nil {
		h.controlError(c, http.StatusBadRequest, "INVALID_TIME_SCALE", "time_scale must be positive", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":     statusUpdated,
		"time_scale": *req.TimeScale,
	})
}

// @Summary      Inject a fault
// @Description  Physical faults set pin flags; network faults affect delivery
// @Tags         control
// @Accept       json
// @Produce      json
// @Param        body  body  TriggerErrorRequest  true  "Fault parameters"
// @Success      200   {object}  map[string]interface{}
// @Failure      400   {object}  map[string]string
// @Router       /trigger-error [post]
func (h *Handler) triggerError(c *gin.Context) {
	var req TriggerErrorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.controlError(c, http.StatusBadRequest, "INVALID_JSON", "Invalid JSON body", err)
		return
	}
	if req.ErrorType == "" {
		h.controlError(c, http.StatusBadRequest, "MISSING_ERROR_TYPE", "error_type is required", nil)
		return
	}

	info, err := h.services.Scenario.TriggerFault(service.FaultParams{
		Type:            req.ErrorType,
		DurationSeconds: req.Duration,
		LatencyMS:       req.LatencyMS,
		FailureRate:     req.FailureRate,
	})
	if err != nil {
		h.controlError(c, http.StatusBadRequest, "INVALID_ERROR_TYPE", err.Error(), err)
		return
	}

	h.broadcastState()

	c.JSON(http.StatusOK, gin.H{
		"status":     statusTriggered,
		"error_type": info.Type,
		"enabled":    info.Enabled,
		"duration":   info.DurationSeconds,
	})
}

// @Summary      Clear a fault
// @Tags         control
// @Accept       json
// @Produce      json
// @Param        body  body  ClearErrorRequest  true  "Fault to clear"
// @Success      200   {object}  map[string]interface{}
// @Failure      400   {object}  map[string]string
// @Router       /clear-error [post]
func (h *Handler) clearError(c *gin.Context) {
	var req ClearErrorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.controlError(c, http.StatusBadRequest, "INVALID_JSON", "Invalid JSON body", err)
		return
	}
	if req.ErrorType == "" {
		h.controlError(c, http.StatusBadRequest, "MISSING_ERROR_TYPE", "error_type is required", nil)
		return
	}

	info, err := h.services.Scenario.ClearFault(req.ErrorType)
	if err != nil {
		h.controlError(c, http.StatusBadRequest, "INVALID_ERROR_TYPE", err.Error(), err)
		return
	}

	h.broadcastState()

	c.JSON(http.StatusOK, gin.H{
		"status":     statusCleared,
		"error_type": info.Type,
		"enabled":    info.Enabled,
	})
}

// @Summary      Current device state
// @Tags         control
// @Produce      json
// @Success      200  {object}  map[string]interface{}
// @Router       /state [get]
func (h *Handler) getState(c *gin.Context) {
	state := h.services.Device.Snapshot()

	// The control plane uses snake_case throughout; the dashed keys belong to
	// the device protocol only.
	c.JSON(http.StatusOK, gin.H{
		"cooker_id":        state.CookerID,
		"device_type":      state.DeviceType,
		"firmware_version": state.FirmwareVersion,
		"online":           state.Online,
		"job": gin.H{
			"id":                 state.Job.ID,
			"mode":               state.Job.Mode,
			"target_temperature": state.Job.TargetTemperature,
			"temperature_unit":   state.Job.TemperatureUnit,
			"cook_time_seconds":  state.Job.CookTimeSeconds,
		},
		"job_status": gin.H{
			"state":               state.JobStatus.State,
			"cook_time_remaining": state.JobStatus.CookTimeRemaining,
		},
		"temperature_info": gin.H{
			"water_temperature":  state.TemperatureInfo.WaterTemperature,
			"heater_temperature": state.TemperatureInfo.HeaterTemperature,
			"triac_temperature":  state.TemperatureInfo.TriacTemperature,
		},
		"heater_control": gin.H{"duty_cycle": state.HeaterControl.DutyCycle},
		"motor_control":  gin.H{"duty_cycle": state.MotorControl.DutyCycle},
		"motor_info":     gin.H{"rpm": state.MotorInfo.RPM},
		"pin_info": gin.H{
			"device_safe":          state.PinInfo.DeviceSafe,
			"water_leak":           state.PinInfo.WaterLeak,
			"water_level_low":      state.PinInfo.WaterLevelLow,
			"water_level_critical": state.PinInfo.WaterLevelCritical,
			"motor_stuck":          state.PinInfo.MotorStuck,
		},
		"network_info": gin.H{
			"connection_status": state.NetworkInfo.ConnectionStatus,
			"mac_address":       state.NetworkInfo.MacAddress,
			"ssid":              state.NetworkInfo.SSID,
		},
		"time_scale": h.services.Scenario.TimeScale(),
	})
}

// @Summary      Recorded protocol frames
// @Tags         control
// @Produce      json
// @Param        limit      query  int     false  "Max messages (default 100)"
// @Param        direction  query  string  false  "inbound | outbound | all"
// @Success      200  {object}  map[string]interface{}
// @Failure      400  {object}  map[string]string
// @Router       /messages [get]
func (h *Handler) getMessages(c *gin.Context) {
	limit := 100
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			h.controlError(c, http.StatusBadRequest, "INVALID_LIMIT", "limit must be a number", err)
			return
		}
		limit = n
	}
	direction := c.DefaultQuery("direction", "all")
	switch direction {
	case "all", models.DirectionInbound, models.DirectionOutbound:
	default:
		h.controlError(c, http.StatusBadRequest, "INVALID_DIRECTION",
			"direction must be inbound, outbound, or all", nil)
		return
	}

	messages, err := h.services.Messages.List(c.Request.Context(), limit, direction)
	if err != nil {
		h.controlError(c, http.StatusInternalServerError, "GET_MESSAGES_FAILED", err.Error(), err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"count":    len(messages),
		"messages": messages,
	})
}

// @Summary      Active faults
// @Tags         control
// @Produce      json
// @Success      200  {object}  map[string]interface{}
// @Router       /errors [get]
func (h *Handler) getErrors(c *gin.Context) {
	active := h.services.Scenario.ActiveFaults()

	names := make([]string, 0, len(active))
	for _, f := range active {
		names = append(names, f.Type)
	}
	c.JSON(http.StatusOK, gin.H{
		"active_errors": names,
		"errors":        active,
	})
}

// @Summary      Control-plane health
// @Tags         system
// @Produce      json
// @Success      200  {object}  map[string]interface{}
// @Router       /health [get]
func (h *Handler) controlHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":            "ok",
		"service":           "control-api",
		"simulator_state":   h.services.Device.Snapshot().State(),
		"clients_connected": h.hub.Count(),
	})
}

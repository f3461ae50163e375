package handlers

import (
	"net/http"
	"time"

	"safeguard/internal/models"
	"safeguard/internal/services"
	"safeguard/internal/utils"
	"safeguard/internal/validators"

	"github.com/gin-gonic/gin"
)

type TelemetryHandler struct {
	telemetryService services.TelemetryService
}

func NewTelemetryHandler(telemetryService services.TelemetryService) *TelemetryHandler {
	return &TelemetryHandler{
		telemetryService: telemetryService,
	}
}

// ReportTelemetry stores the latest location and battery reading for the
// calling device. Devices without a live websocket post here instead.
func (h *TelemetryHandler) ReportTelemetry(c *gin.Context) {
	var request validators.TelemetryRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		utils.BadRequestResponse(c, "Invalid request: "+err.Error())
		return
	}

	if validationErrors := validators.ValidateTelemetry(&request); len(validationErrors) > 0 {
		details := make(map[string]string)
		for _, ve := range validationErrors {
			details[ve.Field] = ve.Message
		}
		utils.ValidationErrorResponse(c, details)
		return
	}

	_, deviceID, ok := requireIdentity(c)
	if !ok {
		return
	}

	report := &models.TelemetryReport{
		DeviceID:   deviceID,
		Latitude:   request.Latitude,
		Longitude:  request.Longitude,
		Accuracy:   request.Accuracy,
		Battery:    request.Battery,
		ReportedAt: time.Now(),
	}

	if err := h.telemetryService.Report(c.Request.Context(), deviceID, report); err != nil {
		utils.ErrorResponse(c, http.StatusInternalServerError, "TELEMETRY_STORE_FAILED", err.Error())
		return
	}

	utils.SuccessResponse(c, "Telemetry recorded", nil)
}

// GetLatestTelemetry returns the last reading reported by the device
func (h *TelemetryHandler) GetLatestTelemetry(c *gin.Context) {
	_, deviceID, ok := requireIdentity(c)
	if !ok {
		return
	}

	report, err := h.telemetryService.Latest(c.Request.Context(), deviceID)
	if err != nil {
		utils.ErrorResponse(c, http.StatusInternalServerError, "TELEMETRY_FETCH_FAILED", err.Error())
		return
	}
	if report == nil {
		utils.NotFoundResponse(c, "telemetry")
		return
	}

	utils.SuccessResponse(c, "Telemetry retrieved", report)
}

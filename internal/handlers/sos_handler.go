package handlers

import (
	"errors"
	"net/http"

	"safeguard/internal/services"
	"safeguard/internal/utils"
	"safeguard/internal/validators"

	"github.com/gin-gonic/gin"
)

type SosHandler struct {
	sosService services.SosService
}

func NewSosHandler(sosService services.SosService) *SosHandler {
	return &SosHandler{
		sosService: sosService,
	}
}

// SetPin configures the silence PIN for the caller's SOS siren
func (h *SosHandler) SetPin(c *gin.Context) {
	var request validators.SetPinRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		utils.BadRequestResponse(c, "Invalid request: "+err.Error())
		return
	}

	if validationErrors := validators.ValidateStruct(&request); len(validationErrors) > 0 {
		utils.BadRequestResponse(c, validationErrors.Error())
		return
	}

	userID, _, ok := requireIdentity(c)
	if !ok {
		return
	}

	if err := h.sosService.SetPin(c.Request.Context(), userID, request.Pin); err != nil {
		respondSosError(c, err, "PIN_UPDATE_FAILED")
		return
	}

	utils.SuccessResponse(c, "PIN updated successfully", nil)
}

// Arm marks the SOS siren as sounding
func (h *SosHandler) Arm(c *gin.Context) {
	userID, _, ok := requireIdentity(c)
	if !ok {
		return
	}

	if err := h.sosService.Arm(c.Request.Context(), userID); err != nil {
		respondSosError(c, err, "SOS_ARM_FAILED")
		return
	}

	utils.SuccessResponse(c, "SOS siren armed", nil)
}

// Silence disarms the SOS siren with the PIN
func (h *SosHandler) Silence(c *gin.Context) {
	var request validators.SilenceRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		utils.BadRequestResponse(c, "Invalid request: "+err.Error())
		return
	}

	userID, _, ok := requireIdentity(c)
	if !ok {
		return
	}

	if err := h.sosService.Silence(c.Request.Context(), userID, request.Pin); err != nil {
		respondSosError(c, err, "SOS_SILENCE_FAILED")
		return
	}

	utils.SuccessResponse(c, "SOS siren silenced", nil)
}

// GetLockStatus reports whether the siren is armed and a PIN is set
func (h *SosHandler) GetLockStatus(c *gin.Context) {
	userID, _, ok := requireIdentity(c)
	if !ok {
		return
	}

	status, err := h.sosService.Status(c.Request.Context(), userID)
	if err != nil {
		respondSosError(c, err, "SOS_STATUS_FAILED")
		return
	}

	utils.SuccessResponse(c, "SOS lock status retrieved", status)
}

func respondSosError(c *gin.Context, err error, fallbackCode string) {
	switch {
	case errors.Is(err, services.ErrInvalidPin):
		utils.BadRequestResponse(c, err.Error())
	case errors.Is(err, services.ErrWrongPin):
		utils.ErrorResponse(c, http.StatusForbidden, "WRONG_PIN", err.Error())
	case errors.Is(err, services.ErrPinNotSet):
		utils.ConflictResponse(c, err.Error())
	case errors.Is(err, services.ErrSirenNotArmed):
		utils.ConflictResponse(c, err.Error())
	case errors.Is(err, services.ErrTooManyAttempts):
		utils.TooManyRequestsResponse(c, err.Error())
	default:
		utils.ErrorResponse(c, http.StatusInternalServerError, fallbackCode, err.Error())
	}
}

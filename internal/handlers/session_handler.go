package handlers

import (
	"errors"
	"net/http"
	"time"

	"safeguard/internal/models"
	"safeguard/internal/services"
	"safeguard/internal/utils"
	"safeguard/internal/validators"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type SessionHandler struct {
	sessionService services.SessionService
}

func NewSessionHandler(sessionService services.SessionService) *SessionHandler {
	return &SessionHandler{
		sessionService: sessionService,
	}
}

// StartSession starts a new emergency sharing session
func (h *SessionHandler) StartSession(c *gin.Context) {
	var request validators.StartSessionRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		utils.BadRequestResponse(c, "Invalid request: "+err.Error())
		return
	}

	if validationErrors := validators.ValidateStartSession(&request); len(validationErrors) > 0 {
		details := make(map[string]string)
		for _, ve := range validationErrors {
			details[ve.Field] = ve.Message
		}
		utils.ValidationErrorResponse(c, details)
		return
	}

	userID, deviceID, ok := requireIdentity(c)
	if !ok {
		return
	}

	recipients := make([]models.Contact, len(request.Recipients))
	for i, r := range request.Recipients {
		recipients[i] = models.Contact{
			ID:        primitive.NewObjectID().Hex(),
			Name:      r.Name,
			Phone:     utils.NormalizePhone(r.Phone),
			PushToken: r.PushToken,
			PhotoURL:  r.PhotoURL,
		}
	}

	session, err := h.sessionService.Start(c.Request.Context(), &services.StartSessionRequest{
		UserID:         userID,
		DeviceID:       deviceID,
		Reason:         request.Reason,
		Duration:       time.Duration(request.DurationMinutes) * time.Minute,
		Recipients:     recipients,
		CheckinEnabled: request.CheckinEnabled,
	})
	if err != nil {
		respondSessionError(c, err, "SESSION_START_FAILED")
		return
	}

	utils.CreatedResponse(c, "Session started successfully", session)
}

// GetActiveSession returns the active session for the calling device
func (h *SessionHandler) GetActiveSession(c *gin.Context) {
	_, deviceID, ok := requireIdentity(c)
	if !ok {
		return
	}

	session, err := h.sessionService.ActiveForDevice(c.Request.Context(), deviceID)
	if err != nil {
		respondSessionError(c, err, "SESSION_FETCH_FAILED")
		return
	}

	utils.SuccessResponse(c, "Active session retrieved", session)
}

// GetSession returns a single session by ID
func (h *SessionHandler) GetSession(c *gin.Context) {
	sessionID, ok := sessionIDParam(c)
	if !ok {
		return
	}

	userID, _, ok := requireIdentity(c)
	if !ok {
		return
	}

	session, err := h.sessionService.GetByID(c.Request.Context(), sessionID, userID)
	if err != nil {
		respondSessionError(c, err, "SESSION_FETCH_FAILED")
		return
	}

	utils.SuccessResponse(c, "Session retrieved", session)
}

// ExtendSession pushes the session expiry out
func (h *SessionHandler) ExtendSession(c *gin.Context) {
	sessionID, ok := sessionIDParam(c)
	if !ok {
		return
	}

	var request validators.ExtendSessionRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		utils.BadRequestResponse(c, "Invalid request: "+err.Error())
		return
	}

	userID, _, ok := requireIdentity(c)
	if !ok {
		return
	}

	session, err := h.sessionService.Extend(c.Request.Context(), sessionID, userID,
		time.Duration(request.DurationMinutes)*time.Minute)
	if err != nil {
		respondSessionError(c, err, "SESSION_EXTEND_FAILED")
		return
	}

	utils.SuccessResponse(c, "Session extended successfully", session)
}

// StopSession ends an active session
func (h *SessionHandler) StopSession(c *gin.Context) {
	sessionID, ok := sessionIDParam(c)
	if !ok {
		return
	}

	userID, _, ok := requireIdentity(c)
	if !ok {
		return
	}

	session, err := h.sessionService.Stop(c.Request.Context(), sessionID, userID)
	if err != nil {
		respondSessionError(c, err, "SESSION_STOP_FAILED")
		return
	}

	utils.SuccessResponse(c, "Session stopped successfully", session)
}

// Checkin acknowledges the periodic safety check-in
func (h *SessionHandler) Checkin(c *gin.Context) {
	sessionID, ok := sessionIDParam(c)
	if !ok {
		return
	}

	userID, _, ok := requireIdentity(c)
	if !ok {
		return
	}

	session, err := h.sessionService.AcknowledgeCheckin(c.Request.Context(), sessionID, userID)
	if err != nil {
		respondSessionError(c, err, "CHECKIN_FAILED")
		return
	}

	utils.SuccessResponse(c, "Check-in acknowledged", session)
}

// GetSessionHistory returns the caller's past sessions
func (h *SessionHandler) GetSessionHistory(c *gin.Context) {
	userID, _, ok := requireIdentity(c)
	if !ok {
		return
	}

	params := utils.GetPaginationParams(c)
	sessions, total, err := h.sessionService.History(c.Request.Context(), userID, params)
	if err != nil {
		respondSessionError(c, err, "SESSION_HISTORY_FAILED")
		return
	}

	meta := &utils.Meta{Pagination: utils.NewPaginationMeta(params, total)}
	utils.SuccessResponseWithMeta(c, "Sessions retrieved", sessions, meta)
}

func sessionIDParam(c *gin.Context) (primitive.ObjectID, bool) {
	sessionID, err := primitive.ObjectIDFromHex(c.Param("id"))
	if err != nil {
		utils.BadRequestResponse(c, "Invalid session ID")
		return primitive.NilObjectID, false
	}
	return sessionID, true
}

func requireIdentity(c *gin.Context) (primitive.ObjectID, string, bool) {
	userID, exists := c.Get("user_id")
	if !exists {
		utils.UnauthorizedResponse(c)
		return primitive.NilObjectID, "", false
	}

	userObjectID, ok := userID.(primitive.ObjectID)
	if !ok {
		utils.BadRequestResponse(c, "Invalid user ID")
		return primitive.NilObjectID, "", false
	}

	deviceID := c.GetString("device_id")
	if deviceID == "" {
		utils.UnauthorizedResponse(c)
		return primitive.NilObjectID, "", false
	}

	return userObjectID, deviceID, true
}

func respondSessionError(c *gin.Context, err error, fallbackCode string) {
	switch {
	case errors.Is(err, services.ErrInvalidRecipients):
		utils.BadRequestResponse(c, err.Error())
	case errors.Is(err, services.ErrInvalidDuration):
		utils.BadRequestResponse(c, err.Error())
	case errors.Is(err, services.ErrAlreadyActive):
		utils.ConflictResponse(c, err.Error())
	case errors.Is(err, services.ErrNoActiveSession), errors.Is(err, services.ErrSessionNotFound):
		utils.NotFoundResponse(c, "session")
	case errors.Is(err, services.ErrSessionNotActive):
		utils.ConflictResponse(c, err.Error())
	default:
		utils.ErrorResponse(c, http.StatusInternalServerError, fallbackCode, err.Error())
	}
}

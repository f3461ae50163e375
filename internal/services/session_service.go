package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"safeguard/internal/config"
	"safeguard/internal/models"
	"safeguard/internal/repositories/interfaces"
	"safeguard/internal/utils"
	"safeguard/pkg/logger"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// DeviceNotifier pushes lifecycle events back to the originating device.
type DeviceNotifier interface {
	NotifyDevice(deviceID string, eventType string, data map[string]interface{})
}

type StartSessionRequest struct {
	UserID         primitive.ObjectID
	DeviceID       string
	Reason         string
	Duration       time.Duration
	Recipients     []models.Contact
	CheckinEnabled bool
}

type SessionService interface {
	Start(ctx context.Context, req *StartSessionRequest) (*models.EmergencySession, error)
	Extend(ctx context.Context, sessionID, userID primitive.ObjectID, extension time.Duration) (*models.EmergencySession, error)
	Stop(ctx context.Context, sessionID, userID primitive.ObjectID) (*models.EmergencySession, error)
	GetByID(ctx context.Context, sessionID, userID primitive.ObjectID) (*models.EmergencySession, error)
	ActiveForDevice(ctx context.Context, deviceID string) (*models.EmergencySession, error)
	History(ctx context.Context, userID primitive.ObjectID, params *utils.PaginationParams) ([]*models.EmergencySession, int64, error)
	AcknowledgeCheckin(ctx context.Context, sessionID, userID primitive.ObjectID) (*models.EmergencySession, error)
	Restore(ctx context.Context) error
	RunJanitor(ctx context.Context)
	Shutdown(ctx context.Context) error
}

type sessionService struct {
	repo       interfaces.SessionRepository
	cache      CacheService
	dispatcher DispatchService
	telemetry  TelemetryService
	notifier   DeviceNotifier
	config     *config.SessionConfig
	logger     *logger.Logger

	mu      sync.Mutex
	runners map[primitive.ObjectID]*sessionRunner
	wg      sync.WaitGroup
	baseCtx context.Context
	stopAll context.CancelFunc
}

type sessionRunner struct {
	sessionID primitive.ObjectID
	deviceID  string
	cancel    context.CancelFunc
	extendCh  chan time.Time
	checkinCh chan struct{}
}

func NewSessionService(
	repo interfaces.SessionRepository,
	cache CacheService,
	dispatcher DispatchService,
	telemetry TelemetryService,
	notifier DeviceNotifier,
	cfg *config.SessionConfig,
	log *logger.Logger,
) SessionService {
	baseCtx, stopAll := context.WithCancel(context.Background())

	return &sessionService{
		repo:       repo,
		cache:      cache,
		dispatcher: dispatcher,
		telemetry:  telemetry,
		notifier:   notifier,
		config:     cfg,
		logger:     log,
		runners:    make(map[primitive.ObjectID]*sessionRunner),
		baseCtx:    baseCtx,
		stopAll:    stopAll,
	}
}

func (s *sessionService) Start(ctx context.Context, req *StartSessionRequest) (*models.EmergencySession, error) {
	if len(req.Recipients) == 0 {
		return nil, ErrInvalidRecipients
	}

	duration := req.Duration
	if duration == 0 {
		duration = s.config.DefaultDuration
	}
	if duration < s.config.MinDuration || duration > s.config.MaxDuration {
		return nil, ErrInvalidDuration
	}

	now := time.Now()
	session := &models.EmergencySession{
		UserID:     req.UserID,
		DeviceID:   req.DeviceID,
		State:      models.SessionStateActive,
		Reason:     req.Reason,
		Recipients: req.Recipients,
		StartedAt:  now,
		ExpiresAt:  now.Add(duration),
	}

	if req.CheckinEnabled {
		due := now.Add(s.config.CheckinInterval)
		session.CheckinDueAt = &due
	}

	acquired, err := s.cache.AcquireSessionLock(ctx, req.DeviceID, "pending", duration+time.Minute)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire session lock: %w", err)
	}
	if !acquired {
		return nil, ErrAlreadyActive
	}

	// The lock can outlive a crashed process; the database is authoritative.
	if existing, err := s.repo.GetActiveByDevice(ctx, req.DeviceID); err == nil && existing != nil {
		if existing.ExpiresAt.After(now) {
			return nil, ErrAlreadyActive
		}
	}

	if err := s.repo.Create(ctx, session); err != nil {
		s.cache.ReleaseSessionLock(ctx, req.DeviceID)
		return nil, err
	}

	s.cache.AcquireSessionLock(ctx, req.DeviceID, session.ID.Hex(), duration+time.Minute)

	s.startRunner(session)

	s.logger.LogSessionEvent(session.ID, "started", map[string]interface{}{
		"device_id":  session.DeviceID,
		"recipients": len(session.Recipients),
		"expires_at": session.ExpiresAt,
	})

	if s.notifier != nil {
		s.notifier.NotifyDevice(session.DeviceID, "session_started", map[string]interface{}{
			"session_id": session.ID.Hex(),
			"expires_at": session.ExpiresAt.Unix(),
		})
	}

	return session, nil
}

func (s *sessionService) Extend(ctx context.Context, sessionID, userID primitive.ObjectID, extension time.Duration) (*models.EmergencySession, error) {
	session, err := s.getOwnedSession(ctx, sessionID, userID)
	if err != nil {
		return nil, err
	}

	if extension == 0 {
		extension = s.config.DefaultDuration
	}
	if extension < s.config.MinDuration || extension > s.config.MaxDuration {
		return nil, ErrInvalidDuration
	}

	won, err := s.repo.TransitionState(ctx, sessionID,
		[]models.SessionState{models.SessionStateActive},
		models.SessionStateExtending, nil)
	if err != nil {
		return nil, err
	}
	if !won {
		return nil, ErrSessionNotActive
	}

	newExpiry := time.Now().Add(extension)
	if err := s.repo.ExtendExpiry(ctx, sessionID, newExpiry); err != nil {
		s.repo.TransitionState(ctx, sessionID,
			[]models.SessionState{models.SessionStateExtending},
			models.SessionStateActive, nil)
		return nil, err
	}

	if _, err := s.repo.TransitionState(ctx, sessionID,
		[]models.SessionState{models.SessionStateExtending},
		models.SessionStateActive, nil); err != nil {
		return nil, err
	}

	s.cache.RefreshSessionLock(ctx, session.DeviceID, extension+time.Minute)
	s.signalExtend(sessionID, newExpiry)

	s.logger.LogSessionEvent(sessionID, "extended", map[string]interface{}{
		"expires_at": newExpiry,
	})

	session.ExpiresAt = newExpiry
	session.State = models.SessionStateActive
	return session, nil
}

func (s *sessionService) Stop(ctx context.Context, sessionID, userID primitive.ObjectID) (*models.EmergencySession, error) {
	session, err := s.getOwnedSession(ctx, sessionID, userID)
	if err != nil {
		return nil, err
	}

	return s.finishSession(ctx, session, models.SessionStateStopped)
}

func (s *sessionService) GetByID(ctx context.Context, sessionID, userID primitive.ObjectID) (*models.EmergencySession, error) {
	return s.getOwnedSession(ctx, sessionID, userID)
}

func (s *sessionService) ActiveForDevice(ctx context.Context, deviceID string) (*models.EmergencySession, error) {
	session, err := s.repo.GetActiveByDevice(ctx, deviceID)
	if err != nil {
		if err == interfaces.ErrNotFound {
			return nil, ErrNoActiveSession
		}
		return nil, err
	}

	return session, nil
}

func (s *sessionService) History(ctx context.Context, userID primitive.ObjectID, params *utils.PaginationParams) ([]*models.EmergencySession, int64, error) {
	return s.repo.GetByUserID(ctx, userID, params)
}

func (s *sessionService) AcknowledgeCheckin(ctx context.Context, sessionID, userID primitive.ObjectID) (*models.EmergencySession, error) {
	session, err := s.getOwnedSession(ctx, sessionID, userID)
	if err != nil {
		return nil, err
	}

	if !session.State.IsActive() {
		return nil, ErrSessionNotActive
	}

	now := time.Now()
	due := now.Add(s.config.CheckinInterval)
	err = s.repo.Update(ctx, sessionID, map[string]interface{}{
		"last_checkin_at": now,
		"checkin_due_at":  due,
	})
	if err != nil {
		return nil, err
	}

	s.signalCheckin(sessionID)

	session.LastCheckinAt = &now
	session.CheckinDueAt = &due
	return session, nil
}

// Restore rebuilds runners for sessions that were live when the process
// last stopped. Sessions that lapsed while down are expired immediately.
func (s *sessionService) Restore(ctx context.Context) error {
	sessions, err := s.repo.GetActiveSessions(ctx)
	if err != nil {
		return fmt.Errorf("failed to restore sessions: %w", err)
	}

	now := time.Now()
	for _, session := range sessions {
		if !session.ExpiresAt.After(now) {
			if _, err := s.finishSession(ctx, session, models.SessionStateExpired); err != nil {
				s.logger.WithSessionID(session.ID).WithError(err).Error("Failed to expire lapsed session")
			}
			continue
		}

		s.cache.AcquireSessionLock(ctx, session.DeviceID, session.ID.Hex(), session.Remaining(now)+time.Minute)
		s.startRunner(session)

		s.logger.LogSessionEvent(session.ID, "restored", map[string]interface{}{
			"device_id":  session.DeviceID,
			"expires_at": session.ExpiresAt,
		})
	}

	return nil
}

func (s *sessionService) RunJanitor(ctx context.Context) {
	ticker := time.NewTicker(s.config.JanitorInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			cutoff := time.Now().Add(-s.config.RetentionPeriod)
			deleted, err := s.repo.DeleteTerminalBefore(ctx, cutoff)
			if err != nil {
				s.logger.WithError(err).Error("Session retention sweep failed")
				continue
			}
			if deleted > 0 {
				s.logger.WithField("deleted", deleted).Info("Purged ended sessions past retention")
			}
		}
	}
}

func (s *sessionService) Shutdown(ctx context.Context) error {
	s.stopAll()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Runner lifecycle

func (s *sessionService) startRunner(session *models.EmergencySession) {
	runCtx, cancel := context.WithCancel(s.baseCtx)
	runner := &sessionRunner{
		sessionID: session.ID,
		deviceID:  session.DeviceID,
		cancel:    cancel,
		extendCh:  make(chan time.Time, 1),
		checkinCh: make(chan struct{}, 1),
	}

	s.mu.Lock()
	s.runners[session.ID] = runner
	s.mu.Unlock()

	s.wg.Add(1)
	go s.runSession(runCtx, runner, session)
}

func (s *sessionService) removeRunner(sessionID primitive.ObjectID) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if runner, ok := s.runners[sessionID]; ok {
		runner.cancel()
		delete(s.runners, sessionID)
	}
}

func (s *sessionService) signalExtend(sessionID primitive.ObjectID, newExpiry time.Time) {
	s.mu.Lock()
	runner, ok := s.runners[sessionID]
	s.mu.Unlock()
	if !ok {
		return
	}

	// Only the newest expiry matters.
	select {
	case <-runner.extendCh:
	default:
	}
	runner.extendCh <- newExpiry
}

func (s *sessionService) signalCheckin(sessionID primitive.ObjectID) {
	s.mu.Lock()
	runner, ok := s.runners[sessionID]
	s.mu.Unlock()
	if !ok {
		return
	}

	select {
	case runner.checkinCh <- struct{}{}:
	default:
	}
}

func (s *sessionService) runSession(ctx context.Context, runner *sessionRunner, session *models.EmergencySession) {
	defer s.wg.Done()

	s.runDispatchCycle(ctx, runner, models.DispatchTriggerStart)

	ticker := time.NewTicker(s.config.DispatchInterval)
	defer ticker.Stop()

	expiry := time.NewTimer(time.Until(session.ExpiresAt))
	defer expiry.Stop()

	var checkinC <-chan time.Time
	var checkinTimer *time.Timer
	if session.CheckinDueAt != nil {
		checkinTimer = time.NewTimer(time.Until(session.CheckinDueAt.Add(s.config.CheckinGrace)))
		defer checkinTimer.Stop()
		checkinC = checkinTimer.C
	}

	for {
		select {
		case <-ctx.Done():
			return

		case <-ticker.C:
			s.runDispatchCycle(ctx, runner, models.DispatchTriggerScheduled)

		case newExpiry := <-runner.extendCh:
			if !expiry.Stop() {
				select {
				case <-expiry.C:
				default:
				}
			}
			expiry.Reset(time.Until(newExpiry))

		case <-runner.checkinCh:
			if checkinTimer == nil {
				checkinTimer = time.NewTimer(s.config.CheckinInterval + s.config.CheckinGrace)
				defer checkinTimer.Stop()
				checkinC = checkinTimer.C
				continue
			}
			if !checkinTimer.Stop() {
				select {
				case <-checkinTimer.C:
				default:
				}
			}
			checkinTimer.Reset(s.config.CheckinInterval + s.config.CheckinGrace)

		case <-checkinC:
			s.runDispatchCycle(ctx, runner, models.DispatchTriggerCheckinMissed)
			checkinTimer.Reset(s.config.CheckinInterval + s.config.CheckinGrace)

		case <-expiry.C:
			s.expireSession(runner)
			return
		}
	}
}

// runDispatchCycle samples telemetry and fans the alert out. A panic in a
// cycle is contained so the runner keeps its timers alive.
func (s *sessionService) runDispatchCycle(ctx context.Context, runner *sessionRunner, trigger models.DispatchTrigger) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.WithSessionID(runner.sessionID).
				WithField("panic", fmt.Sprintf("%v", r)).
				Error("Dispatch cycle panicked")
		}
	}()

	if ctx.Err() != nil {
		return
	}

	session, err := s.repo.GetByID(ctx, runner.sessionID)
	if err != nil {
		s.logger.WithSessionID(runner.sessionID).WithError(err).Error("Failed to load session for dispatch")
		return
	}
	if !session.State.IsActive() {
		return
	}

	sample, reasons := s.telemetry.Sample(ctx, runner.deviceID)
	if sample != nil {
		if err := s.repo.AppendLocationSample(ctx, session.ID, sample, s.config.MaxLocationSamples); err != nil {
			s.logger.WithSessionID(session.ID).WithError(err).Warn("Failed to record location sample")
		}
	}

	record := s.dispatcher.Dispatch(ctx, session, sample, trigger, reasons)

	if err := s.repo.SetLastDispatch(ctx, session.ID, record); err != nil {
		s.logger.WithSessionID(session.ID).WithError(err).Warn("Failed to record dispatch result")
	}
}

func (s *sessionService) expireSession(runner *sessionRunner) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	session, err := s.repo.GetByID(ctx, runner.sessionID)
	if err != nil {
		s.logger.WithSessionID(runner.sessionID).WithError(err).Error("Failed to load session for expiry")
		s.removeRunner(runner.sessionID)
		return
	}

	if _, err := s.finishSession(ctx, session, models.SessionStateExpired); err != nil {
		s.logger.WithSessionID(runner.sessionID).WithError(err).Error("Failed to expire session")
	}
}

// finishSession performs the single winning transition into a terminal
// state. Stop and expiry can race; only the winner sends the final alert.
func (s *sessionService) finishSession(ctx context.Context, session *models.EmergencySession, to models.SessionState) (*models.EmergencySession, error) {
	now := time.Now()
	won, err := s.repo.TransitionState(ctx, session.ID,
		[]models.SessionState{models.SessionStateActive, models.SessionStateExtending},
		to, map[string]interface{}{"ended_at": now})
	if err != nil {
		return nil, err
	}
	if !won {
		current, getErr := s.repo.GetByID(ctx, session.ID)
		if getErr != nil {
			return nil, getErr
		}
		if current.State.IsTerminal() {
			return nil, ErrNoActiveSession
		}
		return nil, ErrSessionNotActive
	}

	s.removeRunner(session.ID)
	s.cache.ReleaseSessionLock(ctx, session.DeviceID)

	session.State = to
	session.EndedAt = &now

	record := s.dispatcher.Dispatch(ctx, session, session.LastSample(), models.DispatchTriggerFinal, nil)
	if err := s.repo.SetLastDispatch(ctx, session.ID, record); err != nil {
		s.logger.WithSessionID(session.ID).WithError(err).Warn("Failed to record final dispatch")
	}

	event := "stopped"
	if to == models.SessionStateExpired {
		event = "expired"
	}
	s.logger.LogSessionEvent(session.ID, event, map[string]interface{}{
		"device_id": session.DeviceID,
		"ended_at":  now,
	})

	if s.notifier != nil {
		s.notifier.NotifyDevice(session.DeviceID, "session_"+event, map[string]interface{}{
			"session_id": session.ID.Hex(),
		})
	}

	return session, nil
}

func (s *sessionService) getOwnedSession(ctx context.Context, sessionID, userID primitive.ObjectID) (*models.EmergencySession, error) {
	session, err := s.repo.GetByID(ctx, sessionID)
	if err != nil {
		if err == interfaces.ErrNotFound {
			return nil, ErrSessionNotFound
		}
		return nil, err
	}

	if session.UserID != userID {
		return nil, ErrSessionNotFound
	}

	return session, nil
}

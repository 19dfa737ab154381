package service

import (
	"context"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/classpal-api/internal/dto"
	"github.com/noah-isme/classpal-api/internal/models"
	"github.com/noah-isme/classpal-api/internal/repository"
	appErrors "github.com/noah-isme/classpal-api/pkg/errors"
)

type eventStore interface {
	Create(ctx context.Context, event *models.EventItem, inviteeIDs []string) error
	FindByID(ctx context.Context, classID, id string) (*models.EventItem, error)
	List(ctx context.Context, classID string) ([]models.EventItem, error)
	IsInvitee(ctx context.Context, eventID, userID string) (bool, error)
	FindResponse(ctx context.Context, eventID, userID string) (*models.EventResponse, error)
	ResponsesForUser(ctx context.Context, classID, userID string) (map[string]models.ResponseChoice, error)
	ListNonResponders(ctx context.Context, eventID string) ([]string, error)
	ApplyResponse(ctx context.Context, params repository.EventResponseParams) error
	Close(ctx context.Context, params repository.EventCloseParams) error
	FindAttendance(ctx context.Context, eventID, userID string) (*models.EventAttendance, error)
	ListAttendance(ctx context.Context, eventID string) ([]models.EventAttendance, error)
	RecordCheckIn(ctx context.Context, params repository.EventCheckInParams) error
}

type checkInSigner interface {
	Generate(scope, relPath string) (string, time.Time, error)
	Parse(token string) (scope, relPath string, expiresAt time.Time, err error)
}

type memberLister interface {
	ListMembers(ctx context.Context, classID string) ([]models.ClassMember, error)
}

type reminderDispatcher interface {
	Dispatch(ctx context.Context, event models.EventItem, userIDs []string) (int, error)
}

// EventService maintains RSVP tallies. The three buckets always sum to the
// number of invitees.
type EventService struct {
	clock
	store     eventStore
	members   memberLister
	access    *AccessService
	reminders reminderDispatcher
	checkIns  checkInSigner
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
}

// NewEventService constructs an EventService. reminders, checkIns and metrics
// may be nil; without checkIns the check-in commands fail.
func NewEventService(store eventStore, members memberLister, access *AccessService, reminders reminderDispatcher, checkIns checkInSigner, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger) *EventService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EventService{
		store:     store,
		members:   members,
		access:    access,
		reminders: reminders,
		checkIns:  checkIns,
		metrics:   metrics,
		validator: validate,
		logger:    logger,
	}
}

// Create schedules an event. Without an explicit invitee list every class
// member is invited.
func (s *EventService) Create(ctx context.Context, actor models.Actor, req dto.CreateEventRequest) (*models.EventItem, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid event payload")
	}
	if _, err := s.access.Require(ctx, actor, models.CapabilityManageEvents); err != nil {
		return nil, err
	}
	if req.SignupEndsAt != nil && req.SignupEndsAt.After(req.StartsAt) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "sign-up must end before the event starts")
	}

	inviteeIDs := req.InviteeIDs
	if len(inviteeIDs) == 0 {
		members, err := s.members.ListMembers(ctx, actor.ClassID)
		if err != nil {
			return nil, internalError(err, "failed to list class members")
		}
		for _, m := range members {
			inviteeIDs = append(inviteeIDs, m.UserID)
		}
	} else {
		for _, id := range inviteeIDs {
			if _, err := s.access.EnsureMember(ctx, actor.ClassID, id); err != nil {
				return nil, err
			}
		}
	}

	now := s.Now()
	event := &models.EventItem{
		ClassID:      actor.ClassID,
		Title:        strings.TrimSpace(req.Title),
		Description:  strings.TrimSpace(req.Description),
		Location:     strings.TrimSpace(req.Location),
		StartsAt:     req.StartsAt.UTC(),
		SignupEndsAt: req.SignupEndsAt,
		CreatedBy:    actor.UserID,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if req.Capacity > 0 {
		event.Capacity = ptr(req.Capacity)
	}
	if err := s.store.Create(ctx, event, inviteeIDs); err != nil {
		return nil, internalError(err, "failed to create event")
	}
	s.logger.Info("event created",
		zap.String("event_id", event.ID),
		zap.String("class_id", event.ClassID),
		zap.Int("invitees", event.TotalInvitees),
	)
	return event, nil
}

// List returns class events with the actor's own response projected.
func (s *EventService) List(ctx context.Context, actor models.Actor) ([]models.EventItem, error) {
	if _, err := s.access.Member(ctx, actor); err != nil {
		return nil, err
	}
	events, err := s.store.List(ctx, actor.ClassID)
	if err != nil {
		return nil, internalError(err, "failed to list events")
	}
	mine, err := s.store.ResponsesForUser(ctx, actor.ClassID, actor.UserID)
	if err != nil {
		return nil, internalError(err, "failed to load responses")
	}
	for i := range events {
		if choice, ok := mine[events[i].ID]; ok {
			events[i].CurrentUserResponse = ptr(choice)
		}
	}
	if events == nil {
		events = []models.EventItem{}
	}
	return events, nil
}

// Respond records the actor's RSVP. The prior bucket loses one and the new
// bucket gains one in a single commit; repeating the current choice is a no-op.
func (s *EventService) Respond(ctx context.Context, actor models.Actor, eventID string, req dto.RespondEventRequest) (result *models.EventItem, err error) {
	defer func() { s.metrics.ObserveCommand("event.respond", err) }()

	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid response payload")
	}
	if _, err := s.access.Member(ctx, actor); err != nil {
		return nil, err
	}

	changed := false
	err = retryOnConflict(ctx, eventID, func() error {
		event, err := s.load(ctx, actor.ClassID, eventID)
		if err != nil {
			return err
		}
		invited, err := s.store.IsInvitee(ctx, eventID, actor.UserID)
		if err != nil {
			return internalError(err, "failed to check invitee")
		}
		if !invited {
			return appErrors.ForEntity(appErrors.Clone(appErrors.ErrForbidden, "not invited to this event"), eventID)
		}
		now := s.Now()
		if !event.AcceptsResponses(now) {
			return appErrors.ForEntity(appErrors.ErrEventClosed, eventID)
		}

		prior, err := s.store.FindResponse(ctx, eventID, actor.UserID)
		if err != nil {
			return internalError(err, "failed to load response")
		}
		var priorChoice *models.ResponseChoice
		if prior != nil {
			priorChoice = ptr(prior.Choice)
		}
		if priorChoice != nil && *priorChoice == req.Choice {
			event.CurrentUserResponse = priorChoice
			result = event
			return nil
		}
		if req.Choice == models.ResponseRegistered && event.Capacity != nil && event.ResponseCounts.Registered >= *event.Capacity {
			return appErrors.ForEntity(appErrors.ErrEventFull, eventID)
		}

		counts, ok := event.ResponseCounts.Move(priorChoice, req.Choice)
		if !ok {
			s.logger.Error("event counts out of balance",
				zap.String("event_id", eventID),
				zap.Int("registered", event.ResponseCounts.Registered),
				zap.Int("declined", event.ResponseCounts.Declined),
				zap.Int("no_response", event.ResponseCounts.NoResponse),
			)
			return appErrors.ForEntity(appErrors.Clone(appErrors.ErrInternal, "event response counts out of balance"), eventID)
		}

		err = s.store.ApplyResponse(ctx, repository.EventResponseParams{
			EventID:         eventID,
			ClassID:         actor.ClassID,
			ExpectedVersion: event.Version,
			Counts:          counts,
			Response:        models.EventResponse{EventID: eventID, UserID: actor.UserID, Choice: req.Choice, RespondedAt: now},
			UpdatedAt:       now,
		})
		if err := commitError(err, "failed to record response"); err != nil {
			return err
		}

		next := *event
		next.ResponseCounts = counts
		next.Version = event.Version + 1
		next.UpdatedAt = now
		next.CurrentUserResponse = ptr(req.Choice)
		result = &next
		changed = true
		return nil
	})
	if err != nil {
		return nil, err
	}
	if changed {
		s.logger.Info("event response recorded",
			zap.String("event_id", eventID),
			zap.String("user_id", actor.UserID),
			zap.String("choice", string(req.Choice)),
		)
	}
	return result, nil
}

// Close stops accepting responses. Closing a closed event is a no-op.
func (s *EventService) Close(ctx context.Context, actor models.Actor, eventID string) (result *models.EventItem, err error) {
	defer func() { s.metrics.ObserveCommand("event.close", err) }()

	if _, err := s.access.Require(ctx, actor, models.CapabilityManageEvents); err != nil {
		return nil, err
	}
	err = retryOnConflict(ctx, eventID, func() error {
		event, err := s.load(ctx, actor.ClassID, eventID)
		if err != nil {
			return err
		}
		if event.Closed {
			result = event
			return nil
		}
		now := s.Now()
		err = s.store.Close(ctx, repository.EventCloseParams{EventID: eventID, ClassID: actor.ClassID, ExpectedVersion: event.Version, UpdatedAt: now})
		if err := commitError(err, "failed to close event"); err != nil {
			return err
		}
		next := *event
		next.Closed = true
		next.Version = event.Version + 1
		next.UpdatedAt = now
		result = &next
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("event closed", zap.String("event_id", eventID), zap.String("user_id", actor.UserID))
	return result, nil
}

// PingNonResponders queues one reminder per invitee without a response and
// returns how many were queued. Event state is not touched.
func (s *EventService) PingNonResponders(ctx context.Context, actor models.Actor, eventID string) (result *dto.PingResult, err error) {
	defer func() { s.metrics.ObserveCommand("event.ping", err) }()

	if _, err := s.access.Require(ctx, actor, models.CapabilityManageEvents); err != nil {
		return nil, err
	}
	event, err := s.load(ctx, actor.ClassID, eventID)
	if err != nil {
		return nil, err
	}
	if !event.AcceptsResponses(s.Now()) {
		return nil, appErrors.ForEntity(appErrors.ErrEventClosed, eventID)
	}
	pending, err := s.store.ListNonResponders(ctx, eventID)
	if err != nil {
		return nil, internalError(err, "failed to list non responders")
	}

	queued := 0
	if len(pending) > 0 && s.reminders != nil {
		queued, err = s.reminders.Dispatch(ctx, *event, pending)
		if err != nil {
			return nil, err
		}
	}
	s.logger.Info("event reminders queued",
		zap.String("event_id", eventID),
		zap.Int("non_responders", len(pending)),
		zap.Int("queued", queued),
	)
	return &dto.PingResult{EventID: eventID, Reminders: queued}, nil
}

func checkInPath(eventID string) string { return "checkin/" + eventID }

// CheckInCode issues the short-lived token shown as the event's QR code.
func (s *EventService) CheckInCode(ctx context.Context, actor models.Actor, eventID string) (*dto.CheckInCode, error) {
	if _, err := s.access.Require(ctx, actor, models.CapabilityManageEvents); err != nil {
		return nil, err
	}
	if s.checkIns == nil {
		return nil, appErrors.Clone(appErrors.ErrInternal, "event check-in unavailable")
	}
	event, err := s.load(ctx, actor.ClassID, eventID)
	if err != nil {
		return nil, err
	}
	if event.Closed {
		return nil, appErrors.ForEntity(appErrors.ErrEventClosed, eventID)
	}
	token, expiresAt, err := s.checkIns.Generate(actor.ClassID, checkInPath(eventID))
	if err != nil {
		return nil, internalError(err, "failed to issue check-in code")
	}
	return &dto.CheckInCode{EventID: eventID, Token: token, ExpiresAt: expiresAt}, nil
}

// CheckIn records the actor's attendance from a scanned check-in token. Only
// invitees registered for the event may check in; checking in twice returns
// the first record.
func (s *EventService) CheckIn(ctx context.Context, actor models.Actor, eventID string, req dto.CheckInRequest) (result *models.EventAttendance, err error) {
	defer func() { s.metrics.ObserveCommand("event.check_in", err) }()

	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid check-in payload")
	}
	if _, err := s.access.Member(ctx, actor); err != nil {
		return nil, err
	}
	if s.checkIns == nil {
		return nil, appErrors.Clone(appErrors.ErrInternal, "event check-in unavailable")
	}
	scope, path, _, err := s.checkIns.Parse(req.Token)
	if err != nil || scope != actor.ClassID || path != checkInPath(eventID) {
		return nil, appErrors.ForEntity(appErrors.Clone(appErrors.ErrForbidden, "invalid or expired check-in code"), eventID)
	}

	recorded := false
	err = retryOnConflict(ctx, eventID, func() error {
		event, err := s.load(ctx, actor.ClassID, eventID)
		if err != nil {
			return err
		}
		if event.Closed {
			return appErrors.ForEntity(appErrors.ErrEventClosed, eventID)
		}
		response, err := s.store.FindResponse(ctx, eventID, actor.UserID)
		if err != nil {
			return internalError(err, "failed to load response")
		}
		if response == nil || response.Choice != models.ResponseRegistered {
			return appErrors.ForEntity(appErrors.Clone(appErrors.ErrForbidden, "only registered invitees can check in"), eventID)
		}
		existing, err := s.store.FindAttendance(ctx, eventID, actor.UserID)
		if err != nil {
			return internalError(err, "failed to load attendance")
		}
		if existing != nil {
			result = existing
			return nil
		}

		attendance := models.EventAttendance{EventID: eventID, UserID: actor.UserID, CheckedInAt: s.Now()}
		err = s.store.RecordCheckIn(ctx, repository.EventCheckInParams{
			EventID:         eventID,
			ClassID:         actor.ClassID,
			ExpectedVersion: event.Version,
			Attendance:      attendance,
		})
		if err := commitError(err, "failed to record check-in"); err != nil {
			return err
		}
		result = &attendance
		recorded = true
		return nil
	})
	if err != nil {
		return nil, err
	}
	if recorded {
		s.logger.Info("event check-in recorded", zap.String("event_id", eventID), zap.String("user_id", actor.UserID))
	}
	return result, nil
}

// Attendance lists the check-ins of an event in arrival order.
func (s *EventService) Attendance(ctx context.Context, actor models.Actor, eventID string) ([]models.EventAttendance, error) {
	if _, err := s.access.Require(ctx, actor, models.CapabilityManageEvents); err != nil {
		return nil, err
	}
	if _, err := s.load(ctx, actor.ClassID, eventID); err != nil {
		return nil, err
	}
	rows, err := s.store.ListAttendance(ctx, eventID)
	if err != nil {
		return nil, internalError(err, "failed to list attendance")
	}
	if rows == nil {
		rows = []models.EventAttendance{}
	}
	return rows, nil
}

func (s *EventService) load(ctx context.Context, classID, eventID string) (*models.EventItem, error) {
	event, err := s.store.FindByID(ctx, classID, eventID)
	if err != nil {
		return nil, lookupError(err, eventID, "event not found", "failed to load event")
	}
	return event, nil
}

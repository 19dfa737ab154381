package service

import (
	"context"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/classpal-api/internal/dto"
	"github.com/noah-isme/classpal-api/internal/models"
	appErrors "github.com/noah-isme/classpal-api/pkg/errors"
)

func createEvent(t *testing.T, env *testEnv, req dto.CreateEventRequest) *models.EventItem {
	t.Helper()
	if req.Title == "" {
		req.Title = "Class Party"
	}
	if req.StartsAt.IsZero() {
		req.StartsAt = testNow.Add(72 * time.Hour)
	}
	event, err := env.events.Create(context.Background(), actor("mon"), req)
	require.NoError(t, err)
	return event
}

func respond(env *testEnv, userID, eventID string, choice models.ResponseChoice) (*models.EventItem, error) {
	return env.events.Respond(context.Background(), actor(userID), eventID, dto.RespondEventRequest{Choice: choice})
}

func assertBucketsBalanced(t *testing.T, env *testEnv, eventID string) models.ResponseCounts {
	t.Helper()
	stored, err := env.store.Events().FindByID(context.Background(), testClassID, eventID)
	require.NoError(t, err)
	assert.Equal(t, stored.TotalInvitees, stored.ResponseCounts.Total())
	return stored.ResponseCounts
}

func TestEventCreateInvitesWholeClass(t *testing.T) {
	env := newTestEnv(t)
	event := createEvent(t, env, dto.CreateEventRequest{})

	assert.Equal(t, 6, event.TotalInvitees)
	assert.Equal(t, models.ResponseCounts{NoResponse: 6}, event.ResponseCounts)
	assert.Nil(t, event.Capacity)
}

func TestEventCreateRejectsOutsideInvitee(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.events.Create(context.Background(), actor("mon"), dto.CreateEventRequest{
		Title:      "Debate",
		StartsAt:   testNow.Add(time.Hour),
		InviteeIDs: []string{"u1", "out"},
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestEventScenarioCapacity(t *testing.T) {
	env := newTestEnv(t)
	event := createEvent(t, env, dto.CreateEventRequest{Capacity: 2})

	res, err := respond(env, "u1", event.ID, models.ResponseRegistered)
	require.NoError(t, err)
	assert.Equal(t, 1, res.ResponseCounts.Registered)

	res, err = respond(env, "u2", event.ID, models.ResponseRegistered)
	require.NoError(t, err)
	assert.Equal(t, 2, res.ResponseCounts.Registered)

	_, err = respond(env, "u3", event.ID, models.ResponseRegistered)
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrEventFull.Code, appErr.Code)
	assert.Equal(t, event.ID, appErr.EntityID)

	// Declining is still possible on a full event, and frees nothing.
	res, err = respond(env, "u3", event.ID, models.ResponseDeclined)
	require.NoError(t, err)
	assert.Equal(t, models.ResponseCounts{Registered: 2, Declined: 1, NoResponse: 3}, res.ResponseCounts)

	// Switching a registered seat to declined opens it for someone else.
	_, err = respond(env, "u1", event.ID, models.ResponseDeclined)
	require.NoError(t, err)
	res, err = respond(env, "u3", event.ID, models.ResponseRegistered)
	require.NoError(t, err)
	assert.Equal(t, models.ResponseCounts{Registered: 2, Declined: 1, NoResponse: 3}, res.ResponseCounts)
	assertBucketsBalanced(t, env, event.ID)
}

func TestEventRespondSameChoiceIsNoop(t *testing.T) {
	env := newTestEnv(t)
	event := createEvent(t, env, dto.CreateEventRequest{})

	first, err := respond(env, "u1", event.ID, models.ResponseRegistered)
	require.NoError(t, err)
	second, err := respond(env, "u1", event.ID, models.ResponseRegistered)
	require.NoError(t, err)

	assert.Equal(t, first.ResponseCounts, second.ResponseCounts)
	assert.Equal(t, first.Version, second.Version)
	require.NotNil(t, second.CurrentUserResponse)
	assert.Equal(t, models.ResponseRegistered, *second.CurrentUserResponse)
	assert.Equal(t, models.ResponseCounts{Registered: 1, NoResponse: 5}, assertBucketsBalanced(t, env, event.ID))
}

func TestEventRespondErrorPrecedence(t *testing.T) {
	env := newTestEnv(t)
	event := createEvent(t, env, dto.CreateEventRequest{InviteeIDs: []string{"u1", "u2"}})

	_, err := respond(env, "u3", event.ID, models.ResponseRegistered)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)

	_, err = env.events.Close(context.Background(), actor("mon"), event.ID)
	require.NoError(t, err)

	_, err = respond(env, "u3", event.ID, models.ResponseRegistered)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)

	_, err = respond(env, "u1", event.ID, models.ResponseRegistered)
	assert.Equal(t, appErrors.ErrEventClosed.Code, appErrors.FromError(err).Code)

	_, err = respond(env, "u1", "missing", models.ResponseRegistered)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestEventRespondAfterSignupWindow(t *testing.T) {
	env := newTestEnv(t)
	ends := testNow.Add(time.Hour)
	event := createEvent(t, env, dto.CreateEventRequest{SignupEndsAt: &ends})

	_, err := respond(env, "u1", event.ID, models.ResponseRegistered)
	require.NoError(t, err)

	env.events.SetClock(func() time.Time { return ends.Add(time.Second) })
	_, err = respond(env, "u2", event.ID, models.ResponseRegistered)
	assert.Equal(t, appErrors.ErrEventClosed.Code, appErrors.FromError(err).Code)
}

func TestEventCloseIsIdempotent(t *testing.T) {
	env := newTestEnv(t)
	event := createEvent(t, env, dto.CreateEventRequest{})

	closed, err := env.events.Close(context.Background(), actor("mon"), event.ID)
	require.NoError(t, err)
	assert.True(t, closed.Closed)

	again, err := env.events.Close(context.Background(), actor("mon"), event.ID)
	require.NoError(t, err)
	assert.Equal(t, closed.Version, again.Version)

	_, err = env.events.Close(context.Background(), actor("u1"), event.ID)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestEventBucketsStayBalancedUnderRandomResponses(t *testing.T) {
	env := newTestEnv(t)
	event := createEvent(t, env, dto.CreateEventRequest{Capacity: 3})
	users := []string{"u1", "u2", "u3", "mon", "tre", "adv"}
	choices := []models.ResponseChoice{models.ResponseRegistered, models.ResponseDeclined}
	rng := rand.New(rand.NewSource(42))

	for i := 0; i < 200; i++ {
		_, err := respond(env, users[rng.Intn(len(users))], event.ID, choices[rng.Intn(len(choices))])
		if err != nil {
			require.Equal(t, appErrors.ErrEventFull.Code, appErrors.FromError(err).Code)
		}
		counts := assertBucketsBalanced(t, env, event.ID)
		require.LessOrEqual(t, counts.Registered, 3)
	}
}

func TestEventConcurrentResponsesKeepInvariant(t *testing.T) {
	env := newTestEnv(t)
	event := createEvent(t, env, dto.CreateEventRequest{})
	users := []string{"u1", "u2", "u3", "mon", "tre", "adv"}

	var wg sync.WaitGroup
	for round := 0; round < 5; round++ {
		for i, userID := range users {
			choice := models.ResponseRegistered
			if (i+round)%2 == 0 {
				choice = models.ResponseDeclined
			}
			wg.Add(1)
			go func(userID string, choice models.ResponseChoice) {
				defer wg.Done()
				_, err := respond(env, userID, event.ID, choice)
				if err != nil {
					assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
				}
			}(userID, choice)
		}
	}
	wg.Wait()

	counts := assertBucketsBalanced(t, env, event.ID)
	responded := 0
	for _, userID := range users {
		res, err := env.store.Events().FindResponse(context.Background(), event.ID, userID)
		require.NoError(t, err)
		if res != nil {
			responded++
		}
	}
	assert.Equal(t, responded, counts.Registered+counts.Declined)
}

func TestEventListProjectsCurrentUserResponse(t *testing.T) {
	env := newTestEnv(t)
	event := createEvent(t, env, dto.CreateEventRequest{})
	_, err := respond(env, "u1", event.ID, models.ResponseDeclined)
	require.NoError(t, err)

	mine, err := env.events.List(context.Background(), actor("u1"))
	require.NoError(t, err)
	require.Len(t, mine, 1)
	require.NotNil(t, mine[0].CurrentUserResponse)
	assert.Equal(t, models.ResponseDeclined, *mine[0].CurrentUserResponse)

	theirs, err := env.events.List(context.Background(), actor("u2"))
	require.NoError(t, err)
	assert.Nil(t, theirs[0].CurrentUserResponse)
}

func TestEventPingNonResponders(t *testing.T) {
	env := newTestEnv(t)
	event := createEvent(t, env, dto.CreateEventRequest{InviteeIDs: []string{"u1", "u2", "u3"}})
	_, err := respond(env, "u2", event.ID, models.ResponseRegistered)
	require.NoError(t, err)
	before := assertBucketsBalanced(t, env, event.ID)

	res, err := env.events.PingNonResponders(context.Background(), actor("mon"), event.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Reminders)
	assert.ElementsMatch(t, []string{"u1", "u3"}, env.reminders.userIDs)
	assert.Equal(t, before, assertBucketsBalanced(t, env, event.ID))

	_, err = env.events.PingNonResponders(context.Background(), actor("u1"), event.ID)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

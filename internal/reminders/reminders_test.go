package reminders_test

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/jogardn/roastery-orders/internal/mail"
	"github.com/jogardn/roastery-orders/internal/mocks"
	"github.com/jogardn/roastery-orders/internal/reminders"
	"github.com/jogardn/roastery-orders/internal/store"
	"github.com/jogardn/roastery-orders/pkg/models"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func strPtr(s string) *string { return &s }

// Tuesday 2024-03-05 10:30 UTC.
var tuesdayMorning = time.Date(2024, 3, 5, 10, 30, 0, 0, time.UTC)

func TestDue(t *testing.T) {
	sentToday := time.Date(2024, 3, 5, 9, 0, 0, 0, time.UTC)
	sentLastWeek := time.Date(2024, 2, 27, 9, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		reminder models.Reminder
		want     bool
	}{
		{name: "matching weekday after hour", reminder: models.Reminder{Weekday: 2, Hour: 9, IsActive: true}, want: true},
		{name: "exactly on the hour", reminder: models.Reminder{Weekday: 2, Hour: 10, IsActive: true}, want: true},
		{name: "hour not reached", reminder: models.Reminder{Weekday: 2, Hour: 11, IsActive: true}},
		{name: "other weekday", reminder: models.Reminder{Weekday: 3, Hour: 9, IsActive: true}},
		{name: "inactive", reminder: models.Reminder{Weekday: 2, Hour: 9}},
		{name: "already sent today", reminder: models.Reminder{Weekday: 2, Hour: 9, IsActive: true, LastSentAt: &sentToday}},
		{name: "sent last week", reminder: models.Reminder{Weekday: 2, Hour: 9, IsActive: true, LastSentAt: &sentLastWeek}, want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			due := reminders.Due([]models.Reminder{tt.reminder}, tuesdayMorning, time.UTC)
			assert.Equal(t, tt.want, len(due) == 1)
		})
	}
}

func TestDueUsesLocation(t *testing.T) {
	tokyo, err := time.LoadLocation("Asia/Tokyo")
	require.NoError(t, err)

	// 10:30 UTC Tuesday is 19:30 Tuesday in Tokyo.
	r := models.Reminder{Weekday: 2, Hour: 19, IsActive: true}
	assert.Len(t, reminders.Due([]models.Reminder{r}, tuesdayMorning, tokyo), 1)
	assert.Empty(t, reminders.Due([]models.Reminder{r}, tuesdayMorning, time.UTC))
}

func TestValidate(t *testing.T) {
	assert.NoError(t, reminders.Validate(&models.Reminder{Title: "Order day", Weekday: 6, Hour: 23}))
	assert.ErrorIs(t, reminders.Validate(&models.Reminder{Title: "x", Weekday: 7}), reminders.ErrInvalidReminder)
	assert.ErrorIs(t, reminders.Validate(&models.Reminder{Title: "x", Hour: 24}), reminders.ErrInvalidReminder)
	assert.ErrorIs(t, reminders.Validate(&models.Reminder{}), reminders.ErrInvalidReminder)
}

func dispatcher(st *mocks.MockReminderStore, sender *mocks.MockMailSender) *reminders.Dispatcher {
	return reminders.NewDispatcher(st, sender, time.UTC, time.Minute, testLogger())
}

// dueNow builds a reminder scheduled for today at midnight UTC, so it is
// due whenever the test runs.
func dueNow(id string, customerID *string) models.Reminder {
	now := time.Now().UTC()
	return models.Reminder{ID: id, CustomerID: customerID, Title: "Order day", Message: "Get your order in", Weekday: int(now.Weekday()), Hour: 0, IsActive: true}
}

func TestRunOnceSendsToAllActiveCustomers(t *testing.T) {
	st := new(mocks.MockReminderStore)
	sender := new(mocks.MockMailSender)

	st.On("ListReminders", mock.Anything, true).Return([]models.Reminder{dueNow("r1", nil)}, nil)
	st.On("ListCustomers", mock.Anything, true).Return([]models.User{
		{ID: "c1", Email: "a@cafe.test", IsActive: true},
		{ID: "c2", Email: "b@cafe.test", IsActive: true},
		{ID: "c3", IsActive: true},
	}, nil)
	sender.On("Send", mock.Anything, mock.MatchedBy(func(job mail.Job) bool {
		return job.Kind == mail.KindReminder && job.Subject == "Order day"
	})).Return(nil)
	st.On("MarkReminderSent", mock.Anything, "r1", mock.AnythingOfType("time.Time")).Return(nil)

	sent, err := dispatcher(st, sender).RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, sent)
	sender.AssertNumberOfCalls(t, "Send", 2)
	st.AssertExpectations(t)
}

func TestRunOnceTargetedReminder(t *testing.T) {
	st := new(mocks.MockReminderStore)
	sender := new(mocks.MockMailSender)

	st.On("ListReminders", mock.Anything, true).Return([]models.Reminder{
		dueNow("r1", strPtr("c1")),
		dueNow("r2", strPtr("gone")),
	}, nil)
	st.On("GetUser", mock.Anything, "c1").Return(&models.User{ID: "c1", Email: "a@cafe.test", IsActive: true}, nil)
	st.On("GetUser", mock.Anything, "gone").Return(nil, store.ErrNotFound)
	sender.On("Send", mock.Anything, mock.MatchedBy(func(job mail.Job) bool { return job.To == "a@cafe.test" })).Return(nil)
	st.On("MarkReminderSent", mock.Anything, "r1", mock.Anything).Return(nil)
	st.On("MarkReminderSent", mock.Anything, "r2", mock.Anything).Return(nil)

	sent, err := dispatcher(st, sender).RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, sent)
	st.AssertNotCalled(t, "ListCustomers", mock.Anything, mock.Anything)
}

func TestRunOnceLeavesFailedReminderUnmarked(t *testing.T) {
	st := new(mocks.MockReminderStore)
	sender := new(mocks.MockMailSender)

	st.On("ListReminders", mock.Anything, true).Return([]models.Reminder{dueNow("r1", strPtr("c1"))}, nil)
	st.On("GetUser", mock.Anything, "c1").Return(&models.User{ID: "c1", Email: "a@cafe.test", IsActive: true}, nil)
	sender.On("Send", mock.Anything, mock.Anything).Return(errors.New("broker unreachable"))

	sent, err := dispatcher(st, sender).RunOnce(context.Background())
	assert.Error(t, err)
	assert.Zero(t, sent)
	st.AssertNotCalled(t, "MarkReminderSent", mock.Anything, mock.Anything, mock.Anything)
}

func TestRunStopsOnCancel(t *testing.T) {
	st := new(mocks.MockReminderStore)
	st.On("ListReminders", mock.Anything, true).Return([]models.Reminder{}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- dispatcher(st, new(mocks.MockMailSender)).Run(ctx) }()

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("dispatcher did not stop")
	}
}

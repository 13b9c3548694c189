package history

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sequentialIDs struct {
	next int
}

func (s *sequentialIDs) NewID() (string, error) {
	s.next++
	return fmt.Sprintf("id-%d", s.next), nil
}

type failingIDs struct{}

func (failingIDs) NewID() (string, error) {
	return "", errors.New("entropy exhausted")
}

func day(t *testing.T, raw string) time.Time {
	t.Helper()
	parsed, err := ParseDate(raw)
	require.NoError(t, err)
	return parsed
}

func seedApplication(t *testing.T, ids IDProvider) *Application {
	t.Helper()
	application, err := NewApplication(ids, ApplicationInput{
		OwnerID:     "account-1",
		CompanyName: "  Acme  ",
		JobTitle:    "Engineer",
		EmailUsed:   "me@example.com",
		Status:      "Applied",
		Date:        day(t, "2024-01-01"),
	})
	require.NoError(t, err)
	return application
}

func assertCurrentMatchesLast(t *testing.T, application *Application) {
	t.Helper()
	require.NotEmpty(t, application.History)
	last := application.History[len(application.History)-1]
	assert.Equal(t, last.Status, application.Status)
	assert.True(t, last.Date.Equal(application.Date), "date %s should equal last event date %s", application.Date, last.Date)
	for index := 1; index < len(application.History); index++ {
		assert.False(t, application.History[index].Date.Before(application.History[index-1].Date), "history not sorted at %d", index)
	}
}

func TestNewApplicationSeedsSingleEvent(t *testing.T) {
	application := seedApplication(t, &sequentialIDs{})

	assert.Equal(t, "id-1", application.ID)
	assert.Equal(t, "Acme", application.CompanyName)
	require.Len(t, application.History, 1)
	assert.Equal(t, "id-2", application.History[0].ID)
	assert.Equal(t, "Applied", application.Status)
	assert.True(t, application.Date.Equal(day(t, "2024-01-01")))
	assertCurrentMatchesLast(t, application)
}

func TestNewApplicationRequiresFields(t *testing.T) {
	valid := ApplicationInput{
		OwnerID:     "account-1",
		CompanyName: "Acme",
		JobTitle:    "Engineer",
		Status:      "Applied",
		Date:        day(t, "2024-01-01"),
	}

	testCases := []struct {
		name   string
		mutate func(*ApplicationInput)
	}{
		{name: "missing-owner", mutate: func(input *ApplicationInput) { input.OwnerID = "" }},
		{name: "missing-company", mutate: func(input *ApplicationInput) { input.CompanyName = "   " }},
		{name: "missing-title", mutate: func(input *ApplicationInput) { input.JobTitle = "" }},
		{name: "missing-status", mutate: func(input *ApplicationInput) { input.Status = "" }},
		{name: "missing-date", mutate: func(input *ApplicationInput) { input.Date = time.Time{} }},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			input := valid
			testCase.mutate(&input)
			_, err := NewApplication(&sequentialIDs{}, input)
			require.ErrorIs(t, err, ErrValidation)
		})
	}
}

func TestNewApplicationPropagatesIDFailure(t *testing.T) {
	_, err := NewApplication(failingIDs{}, ApplicationInput{
		OwnerID:     "account-1",
		CompanyName: "Acme",
		JobTitle:    "Engineer",
		Status:      "Applied",
		Date:        day(t, "2024-01-01"),
	})
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrValidation))
}

func TestHistoryLifecycleScenario(t *testing.T) {
	ids := &sequentialIDs{}
	application := seedApplication(t, ids)
	seedID := application.History[0].ID

	interview, err := AppendStatus(application, ids, "Interview", day(t, "2024-01-10"))
	require.NoError(t, err)
	assert.Equal(t, "Interview", application.Status)
	assert.True(t, application.Date.Equal(day(t, "2024-01-10")))
	assert.Len(t, application.History, 2)
	assertCurrentMatchesLast(t, application)

	require.NoError(t, EditStatus(application, seedID, "Applied", day(t, "2024-01-15")))
	assert.Equal(t, "Applied", application.Status)
	assert.True(t, application.Date.Equal(day(t, "2024-01-15")))
	assert.Equal(t, seedID, application.History[1].ID)
	assertCurrentMatchesLast(t, application)

	require.NoError(t, DeleteStatus(application, seedID))
	require.Len(t, application.History, 1)
	assert.Equal(t, interview.ID, application.History[0].ID)
	assert.Equal(t, "Interview", application.Status)
	assert.True(t, application.Date.Equal(day(t, "2024-01-10")))
}

func TestAppendStatusEarlierDateKeepsCurrentStatus(t *testing.T) {
	ids := &sequentialIDs{}
	application := seedApplication(t, ids)

	_, err := AppendStatus(application, ids, "Referred", day(t, "2023-12-20"))
	require.NoError(t, err)

	assert.Equal(t, "Applied", application.Status)
	assert.Equal(t, "Referred", application.History[0].Status)
	assertCurrentMatchesLast(t, application)
}

func TestAppendStatusSameDateSortsAfterExisting(t *testing.T) {
	ids := &sequentialIDs{}
	application := seedApplication(t, ids)

	_, err := AppendStatus(application, ids, "Phone Interview", day(t, "2024-01-01"))
	require.NoError(t, err)
	assert.Equal(t, "Phone Interview", application.Status)

	_, err = AppendStatus(application, ids, "Rejected", day(t, "2024-01-01"))
	require.NoError(t, err)
	assert.Equal(t, "Rejected", application.Status)
	assert.Equal(t, []string{"Applied", "Phone Interview", "Rejected"}, statuses(application))
}

func TestAppendStatusValidation(t *testing.T) {
	ids := &sequentialIDs{}
	application := seedApplication(t, ids)

	_, err := AppendStatus(application, ids, "  ", day(t, "2024-02-01"))
	require.ErrorIs(t, err, ErrValidation)

	_, err = AppendStatus(application, ids, "Offer Received", time.Time{})
	require.ErrorIs(t, err, ErrValidation)

	assert.Len(t, application.History, 1)
}

func TestReservedStatusIsRejected(t *testing.T) {
	ids := &sequentialIDs{}

	_, err := NewApplication(ids, ApplicationInput{
		OwnerID:     "account-1",
		CompanyName: "Acme",
		JobTitle:    "Engineer",
		Status:      ReservedStatus,
		Date:        day(t, "2024-03-27"),
	})
	require.ErrorIs(t, err, ErrValidation)

	application := seedApplication(t, ids)
	_, err = AppendStatus(application, ids, " label ", day(t, "2024-03-27"))
	var validation *ValidationError
	require.ErrorAs(t, err, &validation)
	assert.Contains(t, validation.Reason, "reserved")

	err = EditStatus(application, application.History[0].ID, ReservedStatus, day(t, "2024-03-27"))
	require.ErrorIs(t, err, ErrValidation)
	assert.Equal(t, []string{"Applied"}, statuses(application))

	_, err = AppendStatus(application, ids, "Label", day(t, "2024-03-27"))
	require.NoError(t, err, "only the exact key collides with the bucket label")
}

func TestEditStatusUnknownEvent(t *testing.T) {
	application := seedApplication(t, &sequentialIDs{})

	err := EditStatus(application, "missing", "Rejected", day(t, "2024-02-01"))
	require.ErrorIs(t, err, ErrNotFound)
}

func TestEditStatusValidationLeavesEventUntouched(t *testing.T) {
	application := seedApplication(t, &sequentialIDs{})
	seedID := application.History[0].ID

	err := EditStatus(application, seedID, "", day(t, "2024-02-01"))
	require.ErrorIs(t, err, ErrValidation)
	assert.Equal(t, "Applied", application.History[0].Status)
	assert.True(t, application.History[0].Date.Equal(day(t, "2024-01-01")))
}

func TestDeleteStatusRejectsLastEvent(t *testing.T) {
	application := seedApplication(t, &sequentialIDs{})
	before := *application
	seedID := application.History[0].ID

	err := DeleteStatus(application, seedID)
	require.ErrorIs(t, err, ErrInvariantViolation)
	require.Len(t, application.History, 1)
	assert.Equal(t, before.Status, application.Status)
	assert.True(t, before.Date.Equal(application.Date))
}

func TestDeleteStatusUnknownEvent(t *testing.T) {
	application := seedApplication(t, &sequentialIDs{})

	err := DeleteStatus(application, "missing")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestMutationSequenceKeepsInvariant(t *testing.T) {
	ids := &sequentialIDs{}
	application := seedApplication(t, ids)
	dates := []string{"2024-03-05", "2024-01-20", "2024-03-05", "2023-11-30", "2024-02-29"}
	for index, raw := range dates {
		_, err := AppendStatus(application, ids, fmt.Sprintf("status-%d", index), day(t, raw))
		require.NoError(t, err)
		assertCurrentMatchesLast(t, application)
	}

	require.NoError(t, EditStatus(application, application.History[0].ID, "moved", day(t, "2024-04-01")))
	assertCurrentMatchesLast(t, application)
	assert.Equal(t, "moved", application.Status)

	for len(application.History) > 1 {
		require.NoError(t, DeleteStatus(application, application.History[len(application.History)-1].ID))
		assertCurrentMatchesLast(t, application)
	}
	require.ErrorIs(t, DeleteStatus(application, application.History[0].ID), ErrInvariantViolation)
}

func TestCheckOwner(t *testing.T) {
	application := seedApplication(t, &sequentialIDs{})

	require.NoError(t, CheckOwner(application, "account-1"))
	require.ErrorIs(t, CheckOwner(application, "account-2"), ErrUnauthorized)
	require.ErrorIs(t, CheckOwner(application, ""), ErrUnauthorized)
}

func TestRecomputeRepairsUnsortedHistory(t *testing.T) {
	application := &Application{
		Status: "stale",
		History: []StatusEvent{
			{ID: "b", Status: "Interview", Date: day(t, "2024-05-02")},
			{ID: "a", Status: "Applied", Date: day(t, "2024-05-01")},
		},
	}

	Recompute(application)

	assert.Equal(t, "Interview", application.Status)
	assert.Equal(t, "a", application.History[0].ID)
}

func statuses(application *Application) []string {
	values := make([]string, 0, len(application.History))
	for _, event := range application.History {
		values = append(values, event.Status)
	}
	return values
}

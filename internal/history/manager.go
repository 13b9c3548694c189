package history

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
)

var errMissingIDProvider = errors.New("history: id provider is required")

// NewApplication builds an application whose history is the single seed event.
func NewApplication(ids IDProvider, input ApplicationInput) (*Application, error) {
	if ids == nil {
		return nil, errMissingIDProvider
	}
	ownerID := strings.TrimSpace(input.OwnerID)
	if ownerID == "" {
		return nil, Invalidf("owner is required")
	}
	companyName := strings.TrimSpace(input.CompanyName)
	if companyName == "" {
		return nil, Invalidf("company name is required")
	}
	jobTitle := strings.TrimSpace(input.JobTitle)
	if jobTitle == "" {
		return nil, Invalidf("job title is required")
	}
	status, date, err := validateEvent(input.Status, input.Date)
	if err != nil {
		return nil, err
	}

	applicationID, err := ids.NewID()
	if err != nil {
		return nil, err
	}
	eventID, err := ids.NewID()
	if err != nil {
		return nil, err
	}

	application := &Application{
		ID:          applicationID,
		OwnerID:     ownerID,
		CompanyName: companyName,
		JobTitle:    jobTitle,
		EmailUsed:   strings.TrimSpace(input.EmailUsed),
		Link:        strings.TrimSpace(input.Link),
		History:     []StatusEvent{{ID: eventID, Status: status, Date: date}},
	}
	Recompute(application)
	return application, nil
}

// AppendStatus adds a new event and re-derives the current status.
func AppendStatus(application *Application, ids IDProvider, status string, date time.Time) (StatusEvent, error) {
	if ids == nil {
		return StatusEvent{}, errMissingIDProvider
	}
	if application == nil {
		return StatusEvent{}, fmt.Errorf("%w: application", ErrNotFound)
	}
	normalizedStatus, normalizedDate, err := validateEvent(status, date)
	if err != nil {
		return StatusEvent{}, err
	}
	eventID, err := ids.NewID()
	if err != nil {
		return StatusEvent{}, err
	}
	event := StatusEvent{ID: eventID, Status: normalizedStatus, Date: normalizedDate}
	application.History = append(application.History, event)
	Recompute(application)
	return event, nil
}

// EditStatus rewrites the event identified by eventID in place.
func EditStatus(application *Application, eventID string, status string, date time.Time) error {
	if application == nil {
		return fmt.Errorf("%w: application", ErrNotFound)
	}
	index := indexOf(application, eventID)
	if index < 0 {
		return fmt.Errorf("%w: status %s", ErrNotFound, eventID)
	}
	normalizedStatus, normalizedDate, err := validateEvent(status, date)
	if err != nil {
		return err
	}
	application.History[index].Status = normalizedStatus
	application.History[index].Date = normalizedDate
	Recompute(application)
	return nil
}

// DeleteStatus removes the event identified by eventID. The sole remaining event
// cannot be removed.
func DeleteStatus(application *Application, eventID string) error {
	if application == nil {
		return fmt.Errorf("%w: application", ErrNotFound)
	}
	index := indexOf(application, eventID)
	if index < 0 {
		return fmt.Errorf("%w: status %s", ErrNotFound, eventID)
	}
	if len(application.History) == 1 {
		return fmt.Errorf("%w: cannot delete the only status of an application", ErrInvariantViolation)
	}
	remaining := make([]StatusEvent, 0, len(application.History)-1)
	remaining = append(remaining, application.History[:index]...)
	remaining = append(remaining, application.History[index+1:]...)
	application.History = remaining
	Recompute(application)
	return nil
}

// CheckOwner rejects any account other than the application's owner.
func CheckOwner(application *Application, accountID string) error {
	if application == nil {
		return fmt.Errorf("%w: application", ErrNotFound)
	}
	if accountID == "" || application.OwnerID != accountID {
		return ErrUnauthorized
	}
	return nil
}

// Recompute stable-sorts the history by date and copies the last event's
// status and date onto the application.
func Recompute(application *Application) {
	if application == nil {
		return
	}
	events := application.History
	sort.SliceStable(events, func(i, j int) bool {
		return events[i].Date.Before(events[j].Date)
	})
	latest, ok := application.Latest()
	if !ok {
		return
	}
	application.Status = latest.Status
	application.Date = latest.Date
}

func validateEvent(status string, date time.Time) (string, time.Time, error) {
	trimmed := strings.TrimSpace(status)
	if trimmed == "" {
		return "", time.Time{}, Invalidf("status is required")
	}
	if trimmed == ReservedStatus {
		return "", time.Time{}, Invalidf("status %q is reserved", ReservedStatus)
	}
	if date.IsZero() {
		return "", time.Time{}, Invalidf("date is required")
	}
	return trimmed, CalendarDate(date), nil
}

func indexOf(application *Application, eventID string) int {
	for index, event := range application.History {
		if event.ID == eventID {
			return index
		}
	}
	return -1
}

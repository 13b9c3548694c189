package applications

import (
	"context"
	"strings"
	"time"

	"github.com/MarcoPoloResearchLab/jobtracker/internal/history"
	"github.com/MarcoPoloResearchLab/jobtracker/internal/serviceerr"
	"go.uber.org/zap"
)

// StatusInput carries the raw request fields for a status event.
type StatusInput struct {
	Status string
	Date   string
}

// AppendStatus adds a dated status event to the application's history.
func (s *Service) AppendStatus(ctx context.Context, ownerID, applicationID string, input StatusInput) (history.Application, error) {
	if err := validateApplicationID(applicationID); err != nil {
		return history.Application{}, serviceerr.New(opAppendStatus, reasonInvalid, err)
	}
	date, err := parseStatusInput(input)
	if err != nil {
		return history.Application{}, serviceerr.New(opAppendStatus, reasonInvalid, err)
	}

	updated, err := s.mutate(ctx, opAppendStatus, ownerID, applicationID, func(application *history.Application) error {
		event, err := history.AppendStatus(application, s.idProvider, input.Status, date)
		if err != nil {
			return err
		}
		s.loggerOrDefault().Debug("status appended",
			zap.String(fieldAppID, applicationID),
			zap.String(fieldStatusID, event.ID))
		return nil
	})
	s.record(opAppendStatus, err)
	return updated, err
}

// EditStatus rewrites the status and date of one history event.
func (s *Service) EditStatus(ctx context.Context, ownerID, applicationID, statusID string, input StatusInput) (history.Application, error) {
	if err := validateIDs(applicationID, statusID); err != nil {
		return history.Application{}, serviceerr.New(opEditStatus, reasonInvalid, err)
	}
	date, err := parseStatusInput(input)
	if err != nil {
		return history.Application{}, serviceerr.New(opEditStatus, reasonInvalid, err)
	}

	updated, err := s.mutate(ctx, opEditStatus, ownerID, applicationID, func(application *history.Application) error {
		return history.EditStatus(application, statusID, input.Status, date)
	})
	s.record(opEditStatus, err)
	return updated, err
}

// DeleteStatus removes one history event. The last remaining event is kept.
func (s *Service) DeleteStatus(ctx context.Context, ownerID, applicationID, statusID string) (history.Application, error) {
	if err := validateIDs(applicationID, statusID); err != nil {
		return history.Application{}, serviceerr.New(opDeleteStatus, reasonInvalid, err)
	}

	updated, err := s.mutate(ctx, opDeleteStatus, ownerID, applicationID, func(application *history.Application) error {
		return history.DeleteStatus(application, statusID)
	})
	s.record(opDeleteStatus, err)
	return updated, err
}

func parseStatusInput(input StatusInput) (time.Time, error) {
	if strings.TrimSpace(input.Status) == "" {
		return time.Time{}, history.Invalidf("status is required")
	}
	return history.ParseDate(input.Date)
}

func validateIDs(applicationID, statusID string) error {
	if err := validateApplicationID(applicationID); err != nil {
		return err
	}
	if !history.ValidID(statusID) {
		return history.Invalidf("invalid status id")
	}
	return nil
}

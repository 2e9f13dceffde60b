package application

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/wms-platform/roadmap-service/internal/domain"
	"github.com/wms-platform/roadmap-service/pkg/errors"
	"github.com/wms-platform/roadmap-service/pkg/logging"
)

// DirectoryService maintains the employee directory and attendance that
// feed assignment
type DirectoryService struct {
	employees  domain.EmployeeRepository
	attendance domain.AttendanceRepository
	logger     *logging.Logger
	now        func() time.Time
}

// NewDirectoryService creates a new DirectoryService
func NewDirectoryService(employees domain.EmployeeRepository, attendance domain.AttendanceRepository, logger *logging.Logger) *DirectoryService {
	return &DirectoryService{
		employees:  employees,
		attendance: attendance,
		logger:     logger,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// UpsertEmployee creates or updates a directory entry
func (s *DirectoryService) UpsertEmployee(ctx context.Context, cmd UpsertEmployeeCommand) (*EmployeeDTO, error) {
	now := s.now()
	employee, err := domain.NewEmployee(cmd.EmployeeID, cmd.Name, cmd.Role, cmd.Active, now)
	if err != nil {
		return nil, domainAppError(err, "invalid employee")
	}

	existing, err := s.employees.FindByID(ctx, employee.EmployeeID)
	if err != nil {
		s.logger.WithError(err).Error("Failed to get employee", "employeeId", employee.EmployeeID)
		return nil, fmt.Errorf("failed to get employee: %w", err)
	}
	if existing != nil {
		employee.CreatedAt = existing.CreatedAt
	}

	if err := s.employees.Save(ctx, employee); err != nil {
		s.logger.WithError(err).Error("Failed to save employee", "employeeId", employee.EmployeeID)
		return nil, fmt.Errorf("failed to save employee: %w", err)
	}

	s.logger.Info("Saved employee", "employeeId", employee.EmployeeID, "role", employee.Role, "active", employee.Active)
	return ToEmployeeDTO(employee), nil
}

// RecordAvailability stores an employee's status for a day. Status accepts
// the availability enum or a raw attendance word such as "present".
func (s *DirectoryService) RecordAvailability(ctx context.Context, cmd RecordAvailabilityCommand) (*AttendanceDTO, error) {
	day, err := time.Parse(time.DateOnly, cmd.Day)
	if err != nil {
		return nil, errors.ErrValidationWithFields("invalid availability", map[string]string{
			"day": "must be a date in YYYY-MM-DD form",
		})
	}

	status := domain.AvailabilityStatus(strings.ToUpper(strings.TrimSpace(cmd.Status)))
	if !status.IsValid() {
		if strings.TrimSpace(cmd.Status) == "" {
			return nil, errors.ErrValidationWithFields("invalid availability", map[string]string{
				"status": "is required",
			})
		}
		status = domain.ParseAttendanceStatus(cmd.Status)
	}

	employee, err := s.employees.FindByID(ctx, cmd.EmployeeID)
	if err != nil {
		s.logger.WithError(err).Error("Failed to get employee", "employeeId", cmd.EmployeeID)
		return nil, fmt.Errorf("failed to get employee: %w", err)
	}
	if employee == nil {
		return nil, errors.ErrNotFoundWithID("employee", cmd.EmployeeID)
	}

	record := &domain.AttendanceRecord{
		EmployeeID: employee.EmployeeID,
		Day:        domain.DayKey(day),
		Status:     status,
		UpdatedAt:  s.now(),
	}
	if err := s.attendance.Record(ctx, record); err != nil {
		s.logger.WithError(err).Error("Failed to record availability", "employeeId", employee.EmployeeID, "day", record.Day)
		return nil, fmt.Errorf("failed to record availability: %w", err)
	}

	s.logger.Info("Recorded availability", "employeeId", employee.EmployeeID, "day", record.Day, "status", status)
	return ToAttendanceDTO(record), nil
}

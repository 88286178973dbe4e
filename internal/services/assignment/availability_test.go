package assignment

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/godesk-io/godesk-ce/internal/models"
	"github.com/godesk-io/godesk-ce/internal/repository"
)

func newOracleFixture(t *testing.T) (*repository.MemoryDirectoryRepository, *repository.MemoryCalendarRepository, *repository.MemoryGroupRepository, *AvailabilityOracle) {
	t.Helper()
	directory := repository.NewMemoryDirectoryRepository()
	calendar := repository.NewMemoryCalendarRepository()
	groups := repository.NewMemoryGroupRepository()
	resolver := NewGroupResolver(groups, nil, 0, nil)
	oracle := NewAvailabilityOracle(directory, calendar, resolver, nil)
	return directory, calendar, groups, oracle
}

func TestAvailabilityLeaveExclusion(t *testing.T) {
	ctx := context.Background()
	checkDate := time.Date(2026, 3, 10, 9, 30, 0, 0, time.UTC)

	t.Run("approved leave covering the date excludes", func(t *testing.T) {
		directory, _, _, oracle := newOracleFixture(t)
		directory.AddEmployee(models.Employee{ID: "EMP-1", UserID: "a@x.com"})
		directory.AddLeave(models.LeaveRecord{
			EmployeeID: "EMP-1",
			FromDate:   time.Date(2026, 3, 9, 0, 0, 0, 0, time.UTC),
			ToDate:     time.Date(2026, 3, 11, 0, 0, 0, 0, time.UTC),
			Status:     models.LeaveStatusApproved,
		})
		assert.Equal(t, models.VerdictExcluded, oracle.Check(ctx, "a@x.com", checkDate))
	})

	t.Run("open leave excludes too", func(t *testing.T) {
		directory, _, _, oracle := newOracleFixture(t)
		directory.AddEmployee(models.Employee{ID: "EMP-1", UserID: "a@x.com"})
		directory.AddLeave(models.LeaveRecord{
			EmployeeID: "EMP-1",
			FromDate:   checkDate,
			ToDate:     checkDate,
			Status:     models.LeaveStatusOpen,
		})
		assert.Equal(t, models.VerdictExcluded, oracle.Check(ctx, "a@x.com", checkDate))
	})

	t.Run("cancelled leave does not exclude", func(t *testing.T) {
		directory, _, _, oracle := newOracleFixture(t)
		directory.AddEmployee(models.Employee{ID: "EMP-1", UserID: "a@x.com"})
		directory.AddLeave(models.LeaveRecord{
			EmployeeID: "EMP-1",
			FromDate:   checkDate,
			ToDate:     checkDate,
			Status:     models.LeaveStatusApproved,
			Cancelled:  true,
		})
		assert.Equal(t, models.VerdictIncluded, oracle.Check(ctx, "a@x.com", checkDate))
	})

	t.Run("leave outside the date does not exclude", func(t *testing.T) {
		directory, _, _, oracle := newOracleFixture(t)
		directory.AddEmployee(models.Employee{ID: "EMP-1", UserID: "a@x.com"})
		directory.AddLeave(models.LeaveRecord{
			EmployeeID: "EMP-1",
			FromDate:   time.Date(2026, 3, 11, 0, 0, 0, 0, time.UTC),
			ToDate:     time.Date(2026, 3, 12, 0, 0, 0, 0, time.UTC),
			Status:     models.LeaveStatusApproved,
		})
		assert.Equal(t, models.VerdictIncluded, oracle.Check(ctx, "a@x.com", checkDate))
	})

	t.Run("user without employee mapping is included", func(t *testing.T) {
		_, _, _, oracle := newOracleFixture(t)
		assert.Equal(t, models.VerdictIncluded, oracle.Check(ctx, "nobody@x.com", checkDate))
	})
}

func TestAvailabilityHolidayExclusion(t *testing.T) {
	ctx := context.Background()
	checkDate := time.Date(2026, 12, 25, 12, 0, 0, 0, time.UTC)

	t.Run("holiday linked to the user's group excludes", func(t *testing.T) {
		_, calendar, groups, oracle := newOracleFixture(t)
		require.NoError(t, groups.Save(ctx, &models.DynamicGroup{ID: "berlin", Name: "Berlin", Members: []string{"a@x.com"}}))
		require.NoError(t, calendar.Create(ctx, &models.Holiday{Name: "Christmas", Date: checkDate, Locations: []string{"berlin"}}))

		assert.Equal(t, models.VerdictExcluded, oracle.Check(ctx, "a@x.com", checkDate))
		assert.Equal(t, models.VerdictIncluded, oracle.Check(ctx, "b@x.com", checkDate))
	})

	t.Run("holiday without locations excludes everyone", func(t *testing.T) {
		_, calendar, _, oracle := newOracleFixture(t)
		require.NoError(t, calendar.Create(ctx, &models.Holiday{Name: "Company Day", Date: checkDate}))
		assert.Equal(t, models.VerdictExcluded, oracle.Check(ctx, "anyone@x.com", checkDate))
	})

	t.Run("holiday on another date does not exclude", func(t *testing.T) {
		_, calendar, groups, oracle := newOracleFixture(t)
		require.NoError(t, groups.Save(ctx, &models.DynamicGroup{ID: "berlin", Name: "Berlin", Members: []string{"a@x.com"}}))
		require.NoError(t, calendar.Create(ctx, &models.Holiday{Name: "Christmas", Date: checkDate, Locations: []string{"berlin"}}))
		assert.Equal(t, models.VerdictIncluded, oracle.Check(ctx, "a@x.com", checkDate.AddDate(0, 0, 1)))
	})
}

type failingDirectory struct{}

func (failingDirectory) GetUser(ctx context.Context, email string) (*models.User, error) {
	return nil, errors.New("directory down")
}

func (failingDirectory) EmployeeByUser(ctx context.Context, email string) (*models.Employee, error) {
	return nil, errors.New("directory down")
}

func (failingDirectory) LeaveRecords(ctx context.Context, employeeID string, on time.Time) ([]models.LeaveRecord, error) {
	return nil, errors.New("directory down")
}

func TestAvailabilityFailsOpen(t *testing.T) {
	ctx := context.Background()
	calendar := repository.NewMemoryCalendarRepository()
	groups := repository.NewMemoryGroupRepository()
	resolver := NewGroupResolver(groups, nil, 0, nil)
	oracle := NewAvailabilityOracle(failingDirectory{}, calendar, resolver, nil)

	verdict := oracle.Check(ctx, "a@x.com", time.Now())
	assert.Equal(t, models.VerdictIndeterminateTreatAsIncluded, verdict)
	assert.True(t, verdict.Assignable(), "a failed check must not block assignment")
}

package repository

import (
	"context"
	"sync"
	"time"

	"github.com/godesk-io/godesk-ce/internal/models"
)

// MemoryDirectoryRepository is an in-memory DirectoryRepository. It also
// backs TeamRepository since team membership is directory data.
type MemoryDirectoryRepository struct {
	mu        sync.RWMutex
	users     map[string]*models.User     // by email
	employees map[string]*models.Employee // by user email
	leaves    map[string][]models.LeaveRecord
	teams     map[string][]string
}

// NewMemoryDirectoryRepository creates an empty in-memory directory.
func NewMemoryDirectoryRepository() *MemoryDirectoryRepository {
	return &MemoryDirectoryRepository{
		users:     make(map[string]*models.User),
		employees: make(map[string]*models.Employee),
		leaves:    make(map[string][]models.LeaveRecord),
		teams:     make(map[string][]string),
	}
}

// AddUser registers a user, for test setup.
func (r *MemoryDirectoryRepository) AddUser(u models.User) {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored := u
	r.users[u.Email] = &stored
}

// AddEmployee registers an employee mapped to a user.
func (r *MemoryDirectoryRepository) AddEmployee(e models.Employee) {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored := e
	r.employees[e.UserID] = &stored
}

// AddLeave records a leave entry for an employee.
func (r *MemoryDirectoryRepository) AddLeave(l models.LeaveRecord) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.leaves[l.EmployeeID] = append(r.leaves[l.EmployeeID], l)
}

// SetTeam sets the member list of a team.
func (r *MemoryDirectoryRepository) SetTeam(teamID string, members []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.teams[teamID] = append([]string(nil), members...)
}

func (r *MemoryDirectoryRepository) GetUser(ctx context.Context, email string) (*models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.users[email]
	if !ok {
		return nil, nil
	}
	out := *u
	return &out, nil
}

func (r *MemoryDirectoryRepository) EmployeeByUser(ctx context.Context, email string) (*models.Employee, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.employees[email]
	if !ok {
		return nil, nil
	}
	out := *e
	return &out, nil
}

func (r *MemoryDirectoryRepository) LeaveRecords(ctx context.Context, employeeID string, on time.Time) ([]models.LeaveRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []models.LeaveRecord
	for _, l := range r.leaves[employeeID] {
		if l.Covers(on) {
			out = append(out, l)
		}
	}
	return out, nil
}

func (r *MemoryDirectoryRepository) Members(ctx context.Context, teamID string) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.teams[teamID]...), nil
}

package mongodb

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/wms-platform/roadmap-service/internal/domain"
	mongoclient "github.com/wms-platform/roadmap-service/pkg/mongodb"
)

const (
	employeesCollection  = "employees"
	attendanceCollection = "attendance"
)

type EmployeeRepository struct {
	collection *mongo.Collection
	obs        mongoclient.Observer
}

func NewEmployeeRepository(db *mongo.Database, obs mongoclient.Observer) *EmployeeRepository {
	repo := &EmployeeRepository{collection: db.Collection(employeesCollection), obs: obs}

	ctx, cancel := context.WithTimeout(context.Background(), indexTimeout)
	defer cancel()
	repo.collection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "employeeId", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "active", Value: 1}, {Key: "role", Value: 1}}},
	})
	return repo
}

func (r *EmployeeRepository) Save(ctx context.Context, employee *domain.Employee) error {
	employee.UpdatedAt = time.Now().UTC()
	return r.obs.Observe(ctx, employeesCollection, "save", func(ctx context.Context) error {
		_, err := r.collection.ReplaceOne(ctx,
			bson.M{"employeeId": employee.EmployeeID},
			employee,
			options.Replace().SetUpsert(true))
		return err
	})
}

func (r *EmployeeRepository) FindByID(ctx context.Context, employeeID string) (*domain.Employee, error) {
	var employee domain.Employee
	err := r.obs.Observe(ctx, employeesCollection, "findById", func(ctx context.Context) error {
		return r.collection.FindOne(ctx, bson.M{"employeeId": employeeID}).Decode(&employee)
	})
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &employee, nil
}

// ListActive returns active employees ordered by employeeId
func (r *EmployeeRepository) ListActive(ctx context.Context) ([]domain.AssignmentCandidate, error) {
	var employees []*domain.Employee
	err := r.obs.Observe(ctx, employeesCollection, "listActive", func(ctx context.Context) error {
		opts := options.Find().SetSort(bson.D{{Key: "employeeId", Value: 1}})
		cursor, err := r.collection.Find(ctx, bson.M{"active": true}, opts)
		if err != nil {
			return err
		}
		defer cursor.Close(ctx)
		return cursor.All(ctx, &employees)
	})
	if err != nil {
		return nil, err
	}

	candidates := make([]domain.AssignmentCandidate, len(employees))
	for i, e := range employees {
		candidates[i] = e.Candidate()
	}
	return candidates, nil
}

// AttendanceRepository answers availability from recorded attendance. An
// employee without a record for the day is AVAILABLE.
type AttendanceRepository struct {
	collection *mongo.Collection
	obs        mongoclient.Observer
}

func NewAttendanceRepository(db *mongo.Database, obs mongoclient.Observer) *AttendanceRepository {
	repo := &AttendanceRepository{collection: db.Collection(attendanceCollection), obs: obs}

	ctx, cancel := context.WithTimeout(context.Background(), indexTimeout)
	defer cancel()
	repo.collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "employeeId", Value: 1}, {Key: "day", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	return repo
}

func (r *AttendanceRepository) Record(ctx context.Context, record *domain.AttendanceRecord) error {
	record.UpdatedAt = time.Now().UTC()
	return r.obs.Observe(ctx, attendanceCollection, "record", func(ctx context.Context) error {
		_, err := r.collection.ReplaceOne(ctx,
			bson.M{"employeeId": record.EmployeeID, "day": record.Day},
			record,
			options.Replace().SetUpsert(true))
		return err
	})
}

func (r *AttendanceRepository) StatusOf(ctx context.Context, employeeID string, day time.Time) (domain.AvailabilityStatus, error) {
	var record domain.AttendanceRecord
	err := r.obs.Observe(ctx, attendanceCollection, "statusOf", func(ctx context.Context) error {
		return r.collection.FindOne(ctx, bson.M{"employeeId": employeeID, "day": domain.DayKey(day)}).Decode(&record)
	})
	if errors.Is(err, mongo.ErrNoDocuments) {
		return domain.Available, nil
	}
	if err != nil {
		return "", err
	}
	return record.Status, nil
}

package mongodb

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/wms-platform/roadmap-service/internal/domain"
	mongoclient "github.com/wms-platform/roadmap-service/pkg/mongodb"
)

const tasksCollection = "tasks"

// TaskRepository reads generated tasks. They are written by
// GenerationRepository.Save; the (projectId, unitIndex, stepIndex) index
// makes concurrent runs for the same units conflict.
type TaskRepository struct {
	collection *mongo.Collection
	obs        mongoclient.Observer
}

func NewTaskRepository(db *mongo.Database, obs mongoclient.Observer) *TaskRepository {
	repo := &TaskRepository{collection: db.Collection(tasksCollection), obs: obs}

	ctx, cancel := context.WithTimeout(context.Background(), indexTimeout)
	defer cancel()
	repo.collection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys: bson.D{
				{Key: "projectId", Value: 1},
				{Key: "unitIndex", Value: 1},
				{Key: "stepIndex", Value: 1},
			},
			Options: options.Index().SetUnique(true),
		},
		{Keys: bson.D{{Key: "taskId", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "assigneeId", Value: 1}, {Key: "status", Value: 1}}},
	})
	return repo
}

// insertAll inserts every task or fails. It is called inside the
// generation transaction, where one existing key aborts the whole run.
func (r *TaskRepository) insertAll(sessCtx mongo.SessionContext, tasks []*domain.TaskInstance) error {
	if len(tasks) == 0 {
		return nil
	}

	docs := make([]interface{}, len(tasks))
	for i, task := range tasks {
		docs[i] = task
	}
	if _, err := r.collection.InsertMany(sessCtx, docs); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return domain.ErrTaskExists
		}
		return fmt.Errorf("failed to insert tasks: %w", err)
	}
	return nil
}

func (r *TaskRepository) FindByProject(ctx context.Context, projectID string) ([]*domain.TaskInstance, error) {
	var tasks []*domain.TaskInstance
	err := r.obs.Observe(ctx, tasksCollection, "findByProject", func(ctx context.Context) error {
		opts := options.Find().SetSort(bson.D{{Key: "unitIndex", Value: 1}, {Key: "stepIndex", Value: 1}})
		cursor, err := r.collection.Find(ctx, bson.M{"projectId": projectID}, opts)
		if err != nil {
			return err
		}
		defer cursor.Close(ctx)
		return cursor.All(ctx, &tasks)
	})
	return tasks, err
}

func (r *TaskRepository) CountActiveByAssignee(ctx context.Context) (map[string]int, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{
			"status":     bson.M{"$in": []domain.TaskStatus{domain.TaskPlanned, domain.TaskInProgress}},
			"assigneeId": bson.M{"$nin": []interface{}{nil, ""}},
		}}},
		{{Key: "$group", Value: bson.M{"_id": "$assigneeId", "count": bson.M{"$sum": 1}}}},
	}

	var rows []struct {
		AssigneeID string `bson:"_id"`
		Count      int    `bson:"count"`
	}
	err := r.obs.Observe(ctx, tasksCollection, "countActiveByAssignee", func(ctx context.Context) error {
		cursor, err := r.collection.Aggregate(ctx, pipeline)
		if err != nil {
			return err
		}
		defer cursor.Close(ctx)
		return cursor.All(ctx, &rows)
	})
	if err != nil {
		return nil, err
	}

	counts := make(map[string]int, len(rows))
	for _, row := range rows {
		counts[row.AssigneeID] = row.Count
	}
	return counts, nil
}

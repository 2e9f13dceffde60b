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

const projectsCollection = "projects"

type ProjectRepository struct {
	collection *mongo.Collection
	obs        mongoclient.Observer
}

func NewProjectRepository(db *mongo.Database, obs mongoclient.Observer) *ProjectRepository {
	repo := &ProjectRepository{collection: db.Collection(projectsCollection), obs: obs}

	ctx, cancel := context.WithTimeout(context.Background(), indexTimeout)
	defer cancel()
	repo.collection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "projectId", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "roadmapId", Value: 1}}, Options: options.Index().SetSparse(true)},
	})
	return repo
}

func (r *ProjectRepository) Save(ctx context.Context, project *domain.Project) error {
	project.UpdatedAt = time.Now().UTC()
	return r.obs.Observe(ctx, projectsCollection, "save", func(ctx context.Context) error {
		_, err := r.collection.ReplaceOne(ctx,
			bson.M{"projectId": project.ProjectID},
			project,
			options.Replace().SetUpsert(true))
		return err
	})
}

func (r *ProjectRepository) FindByID(ctx context.Context, projectID string) (*domain.Project, error) {
	var project domain.Project
	err := r.obs.Observe(ctx, projectsCollection, "findById", func(ctx context.Context) error {
		return r.collection.FindOne(ctx, bson.M{"projectId": projectID}).Decode(&project)
	})
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &project, nil
}

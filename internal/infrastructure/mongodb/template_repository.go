package mongodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/wms-platform/roadmap-service/internal/domain"
	mongoclient "github.com/wms-platform/roadmap-service/pkg/mongodb"
)

const templatesCollection = "roadmap_templates"

// TemplateRepository stores roadmap templates
type TemplateRepository struct {
	collection *mongo.Collection
	obs        mongoclient.Observer
}

func NewTemplateRepository(db *mongo.Database, obs mongoclient.Observer) *TemplateRepository {
	repo := &TemplateRepository{collection: db.Collection(templatesCollection), obs: obs}
	repo.ensureIndexes()
	return repo
}

func (r *TemplateRepository) ensureIndexes() {
	ctx, cancel := context.WithTimeout(context.Background(), indexTimeout)
	defer cancel()
	r.collection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "templateId", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "category", Value: 1}}},
	})
}

// Save upserts the template unless the stored one is referenced. The filter
// excludes referenced documents, so the upsert then collides with the
// unique templateId index.
func (r *TemplateRepository) Save(ctx context.Context, tmpl *domain.RoadmapTemplate) error {
	tmpl.UpdatedAt = time.Now().UTC()
	return r.obs.Observe(ctx, templatesCollection, "save", func(ctx context.Context) error {
		filter := bson.M{"templateId": tmpl.TemplateID, "referenced": bson.M{"$ne": true}}
		_, err := r.collection.ReplaceOne(ctx, filter, tmpl, options.Replace().SetUpsert(true))
		if mongo.IsDuplicateKeyError(err) {
			return domain.ErrTemplateReferenced
		}
		return err
	})
}

// Seed inserts templates that do not exist yet and reports how many were added
func (r *TemplateRepository) Seed(ctx context.Context, templates []*domain.RoadmapTemplate) (int, error) {
	added := 0
	for _, tmpl := range templates {
		err := r.obs.Observe(ctx, templatesCollection, "seed", func(ctx context.Context) error {
			res, err := r.collection.UpdateOne(ctx,
				bson.M{"templateId": tmpl.TemplateID},
				bson.M{"$setOnInsert": tmpl},
				options.Update().SetUpsert(true))
			if err == nil && res.UpsertedCount > 0 {
				added++
			}
			return err
		})
		if err != nil {
			return added, fmt.Errorf("failed to seed template %s: %w", tmpl.TemplateID, err)
		}
	}
	return added, nil
}

func (r *TemplateRepository) FindByID(ctx context.Context, templateID string) (*domain.RoadmapTemplate, error) {
	var tmpl domain.RoadmapTemplate
	err := r.obs.Observe(ctx, templatesCollection, "findById", func(ctx context.Context) error {
		return r.collection.FindOne(ctx, bson.M{"templateId": templateID}).Decode(&tmpl)
	})
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &tmpl, nil
}

func (r *TemplateRepository) FindAll(ctx context.Context) ([]*domain.RoadmapTemplate, error) {
	var templates []*domain.RoadmapTemplate
	err := r.obs.Observe(ctx, templatesCollection, "findAll", func(ctx context.Context) error {
		cursor, err := r.collection.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "templateId", Value: 1}}))
		if err != nil {
			return err
		}
		defer cursor.Close(ctx)
		return cursor.All(ctx, &templates)
	})
	return templates, err
}

func (r *TemplateRepository) MarkReferenced(ctx context.Context, templateID string) error {
	return r.obs.Observe(ctx, templatesCollection, "markReferenced", func(ctx context.Context) error {
		res, err := r.collection.UpdateOne(ctx,
			bson.M{"templateId": templateID},
			bson.M{"$set": bson.M{"referenced": true, "updatedAt": time.Now().UTC()}})
		if err != nil {
			return err
		}
		if res.MatchedCount == 0 {
			return fmt.Errorf("template %s: %w", templateID, mongo.ErrNoDocuments)
		}
		return nil
	})
}

package mongo

import (
	"context"
	"errors"

	"github.com/yoockh/oscesim/internal/models"
	"github.com/yoockh/oscesim/internal/utils"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type CaseRepository interface {
	GetByCaseID(ctx context.Context, caseID string) (*models.Case, error)
	Upsert(ctx context.Context, c *models.Case) error
	List(ctx context.Context, limit int64) ([]models.Case, error)
}

type caseRepo struct {
	col *mongo.Collection
}

func NewCaseRepo(db *mongo.Database) CaseRepository {
	return &caseRepo{col: db.Collection("cases")}
}

func (r *caseRepo) GetByCaseID(ctx context.Context, caseID string) (*models.Case, error) {
	var c models.Case
	err := r.col.FindOne(ctx, bson.M{"case_id": caseID}).Decode(&c)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, utils.ErrNotFound
	}
	return &c, err
}

func (r *caseRepo) Upsert(ctx context.Context, c *models.Case) error {
	_, err := r.col.UpdateOne(ctx,
		bson.M{"case_id": c.CaseID},
		bson.M{"$set": bson.M{"case_id": c.CaseID, "title": c.Title, "truth": c.Truth}},
		options.Update().SetUpsert(true),
	)
	return err
}

func (r *caseRepo) List(ctx context.Context, limit int64) ([]models.Case, error) {
	if limit <= 0 {
		limit = 100
	}
	cur, err := r.col.Find(ctx, bson.M{},
		options.Find().
			SetSort(bson.D{{Key: "case_id", Value: 1}}).
			SetProjection(bson.M{"case_id": 1, "title": 1, "truth.demographics": 1}).
			SetLimit(limit),
	)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []models.Case
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

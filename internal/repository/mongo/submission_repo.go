package mongo

import (
	"context"
	"errors"
	"time"

	"futureintern/internship-app/internal/domain"
	"futureintern/internship-app/internal/repository"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const submissionCollectionName = "task_submissions"

type mongoSubmissionRepository struct {
	collection *mongo.Collection
}

// NewMongoSubmissionRepository creates a new submission log repository backed by MongoDB.
func NewMongoSubmissionRepository(db *mongo.Database) repository.SubmissionRepository {
	return &mongoSubmissionRepository{
		collection: db.Collection(submissionCollectionName),
	}
}

// Upsert writes the slot in a single FindOneAndUpdate, so concurrent
// submissions for the same slot converge on one document.
func (r *mongoSubmissionRepository) Upsert(ctx context.Context, submission *domain.TaskSubmission) (*domain.TaskSubmission, error) {
	if submission.InternshipID.IsZero() || submission.StudentEmail == "" {
		return nil, errors.New("submission requires internshipId and studentEmail")
	}
	if submission.SubmittedAt.IsZero() {
		submission.SubmittedAt = time.Now().UTC()
	}

	now := time.Now().UTC()
	filter := bson.M{
		"internshipId": submission.InternshipID,
		"studentEmail": submission.StudentEmail,
		"taskNumber":   submission.TaskNumber,
	}
	revision := domain.SubmissionRevision{
		ID:            uuid.NewString(),
		SubmissionURL: submission.SubmissionURL,
		SubmittedAt:   submission.SubmittedAt,
	}
	update := bson.M{
		"$set": bson.M{
			"submissionURL": submission.SubmissionURL,
			"submittedAt":   submission.SubmittedAt,
			"updatedAt":     now,
		},
		"$setOnInsert": bson.M{"createdAt": now},
		"$push":        bson.M{"revisions": revision},
	}
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)

	var stored domain.TaskSubmission
	err := r.collection.FindOneAndUpdate(ctx, filter, update, opts).Decode(&stored)
	if err != nil {
		// Two upserts racing on an empty slot: the loser hits the unique index
		// and retries as a plain update.
		if isDuplicate(err) {
			err = r.collection.FindOneAndUpdate(ctx, filter, update, opts).Decode(&stored)
		}
		if err != nil {
			return nil, err
		}
	}
	return &stored, nil
}

func (r *mongoSubmissionRepository) ListByInternship(ctx context.Context, internshipID primitive.ObjectID, studentEmail string) ([]domain.TaskSubmission, error) {
	opts := options.Find().SetSort(bson.D{{Key: "taskNumber", Value: 1}})
	cursor, err := r.collection.Find(ctx, bson.M{"internshipId": internshipID, "studentEmail": studentEmail}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	submissions := []domain.TaskSubmission{}
	if err = cursor.All(ctx, &submissions); err != nil {
		return nil, err
	}
	return submissions, cursor.Err()
}

func (r *mongoSubmissionRepository) CountCompleted(ctx context.Context, internshipID primitive.ObjectID) (int, error) {
	count, err := r.collection.CountDocuments(ctx, bson.M{
		"internshipId":  internshipID,
		"submissionURL": bson.M{"$nin": bson.A{nil, ""}},
	})
	if err != nil {
		return 0, err
	}
	return int(count), nil
}

func submissionIndexes() []mongo.IndexModel {
	return []mongo.IndexModel{
		{
			Keys: bson.D{
				{Key: "internshipId", Value: 1},
				{Key: "studentEmail", Value: 1},
				{Key: "taskNumber", Value: 1},
			},
			Options: options.Index().SetUnique(true),
		},
	}
}

package mongo

import (
	"context"
	"errors"
	"time"

	"futureintern/internship-app/internal/domain"
	"futureintern/internship-app/internal/repository"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const taskCollectionName = "tasks"

type mongoTaskRepository struct {
	collection *mongo.Collection
}

// NewMongoTaskRepository creates a new Task repository backed by MongoDB.
func NewMongoTaskRepository(db *mongo.Database) repository.TaskRepository {
	return &mongoTaskRepository{
		collection: db.Collection(taskCollectionName),
	}
}

// CreateMany inserts the seeded curriculum of an internship in one round trip.
func (r *mongoTaskRepository) CreateMany(ctx context.Context, tasks []domain.Task) ([]primitive.ObjectID, error) {
	if len(tasks) == 0 {
		return nil, nil
	}

	now := time.Now().UTC()
	docs := make([]interface{}, len(tasks))
	for i := range tasks {
		tasks[i].ID = primitive.NewObjectID()
		tasks[i].CreatedAt = now
		tasks[i].UpdatedAt = now
		if tasks[i].Status == "" {
			tasks[i].Status = domain.TaskPending
		}
		docs[i] = tasks[i]
	}

	result, err := r.collection.InsertMany(ctx, docs)
	if err != nil {
		if isDuplicate(err) {
			return nil, repository.ErrDuplicate
		}
		return nil, err
	}

	ids := make([]primitive.ObjectID, 0, len(result.InsertedIDs))
	for _, raw := range result.InsertedIDs {
		id, ok := raw.(primitive.ObjectID)
		if !ok {
			return nil, errors.New("failed to convert inserted task ID")
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func (r *mongoTaskRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*domain.Task, error) {
	return r.findOne(ctx, bson.M{"_id": id})
}

func (r *mongoTaskRepository) GetByInternshipAndNumber(ctx context.Context, internshipID primitive.ObjectID, taskNumber int) (*domain.Task, error) {
	return r.findOne(ctx, bson.M{"internshipId": internshipID, "taskNumber": taskNumber})
}

func (r *mongoTaskRepository) findOne(ctx context.Context, filter bson.M) (*domain.Task, error) {
	var task domain.Task
	err := r.collection.FindOne(ctx, filter).Decode(&task)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &task, nil
}

func (r *mongoTaskRepository) ListByInternship(ctx context.Context, internshipID primitive.ObjectID) ([]domain.Task, error) {
	return r.find(ctx, bson.M{"internshipId": internshipID})
}

// ListOverdue returns unfinished tasks whose due date has passed.
func (r *mongoTaskRepository) ListOverdue(ctx context.Context, internshipID primitive.ObjectID, now time.Time) ([]domain.Task, error) {
	return r.find(ctx, bson.M{
		"internshipId": internshipID,
		"status":       bson.M{"$ne": domain.TaskCompleted},
		"dueDate":      bson.M{"$lt": now},
	})
}

// ListDueBetween returns unfinished tasks due in [from, to].
func (r *mongoTaskRepository) ListDueBetween(ctx context.Context, internshipID primitive.ObjectID, from, to time.Time) ([]domain.Task, error) {
	return r.find(ctx, bson.M{
		"internshipId": internshipID,
		"status":       bson.M{"$ne": domain.TaskCompleted},
		"dueDate":      bson.M{"$gte": from, "$lte": to},
	})
}

func (r *mongoTaskRepository) find(ctx context.Context, filter bson.M) ([]domain.Task, error) {
	opts := options.Find().SetSort(bson.D{{Key: "taskNumber", Value: 1}})
	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	tasks := []domain.Task{}
	if err = cursor.All(ctx, &tasks); err != nil {
		return nil, err
	}
	if err = cursor.Err(); err != nil {
		return nil, err
	}
	return tasks, nil
}

// MarkSubmitted completes a task with the given work URL.
func (r *mongoTaskRepository) MarkSubmitted(ctx context.Context, id primitive.ObjectID, submissionURL string, at time.Time, overdue bool) error {
	return r.updateByID(ctx, id, bson.M{"$set": bson.M{
		"status":        domain.TaskCompleted,
		"submissionURL": submissionURL,
		"submittedAt":   at,
		"isOverdue":     overdue,
		"updatedAt":     time.Now().UTC(),
	}})
}

// UpdateSubmission replaces the work URL without touching status.
func (r *mongoTaskRepository) UpdateSubmission(ctx context.Context, id primitive.ObjectID, submissionURL string, at time.Time) error {
	return r.updateByID(ctx, id, bson.M{"$set": bson.M{
		"submissionURL": submissionURL,
		"submittedAt":   at,
		"updatedAt":     time.Now().UTC(),
	}})
}

func (r *mongoTaskRepository) updateByID(ctx context.Context, id primitive.ObjectID, update bson.M) error {
	result, err := r.collection.UpdateOne(ctx, bson.M{"_id": id}, update)
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func taskIndexes() []mongo.IndexModel {
	return []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "internshipId", Value: 1}, {Key: "taskNumber", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "status", Value: 1}, {Key: "submittedAt", Value: -1}},
			Options: options.Index(),
		},
		{
			Keys:    bson.D{{Key: "internshipId", Value: 1}, {Key: "dueDate", Value: 1}},
			Options: options.Index(),
		},
	}
}

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

const studentCollectionName = "students"

// mongoStudentRepository implements the repository.StudentRepository interface using MongoDB.
type mongoStudentRepository struct {
	collection *mongo.Collection
}

// NewMongoStudentRepository creates a new instance of mongoStudentRepository.
// It expects a connected *mongo.Database instance.
func NewMongoStudentRepository(db *mongo.Database) repository.StudentRepository {
	return &mongoStudentRepository{
		collection: db.Collection(studentCollectionName),
	}
}

// Create inserts a new student into the database.
func (r *mongoStudentRepository) Create(ctx context.Context, student *domain.Student) (primitive.ObjectID, error) {
	if student.Email == "" || student.Password == "" {
		return primitive.NilObjectID, errors.New("student email and password are required")
	}

	student.ID = primitive.NewObjectID()
	now := time.Now().UTC()
	student.CreatedAt = now
	student.UpdatedAt = now
	if student.RegisteredAt.IsZero() {
		student.RegisteredAt = now
	}

	result, err := r.collection.InsertOne(ctx, student)
	if err != nil {
		if isDuplicate(err) {
			return primitive.NilObjectID, repository.ErrDuplicate
		}
		return primitive.NilObjectID, err
	}

	insertedID, ok := result.InsertedID.(primitive.ObjectID)
	if !ok {
		return primitive.NilObjectID, errors.New("failed to convert inserted ID")
	}
	return insertedID, nil
}

// GetByEmail retrieves a student by their email address.
func (r *mongoStudentRepository) GetByEmail(ctx context.Context, email string) (*domain.Student, error) {
	return r.findOne(ctx, bson.M{"email": email})
}

// GetByID retrieves a student by their MongoDB ObjectID.
func (r *mongoStudentRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*domain.Student, error) {
	return r.findOne(ctx, bson.M{"_id": id})
}

func (r *mongoStudentRepository) findOne(ctx context.Context, filter bson.M) (*domain.Student, error) {
	var student domain.Student
	err := r.collection.FindOne(ctx, filter).Decode(&student)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &student, nil
}

// UpdateProfile overwrites the editable profile fields.
func (r *mongoStudentRepository) UpdateProfile(ctx context.Context, id primitive.ObjectID, update domain.ProfileUpdate) error {
	set := bson.M{
		"name":          update.Name,
		"contact":       update.Contact,
		"qualification": update.Qualification,
		"college":       update.College,
		"year":          update.Year,
		"currentCity":   update.CurrentCity,
		"linkedin":      update.LinkedIn,
		"updatedAt":     time.Now().UTC(),
	}
	return r.updateByID(ctx, id, bson.M{"$set": set})
}

// TouchLastLogin records a successful sign-in.
func (r *mongoStudentRepository) TouchLastLogin(ctx context.Context, id primitive.ObjectID, at time.Time) error {
	return r.updateByID(ctx, id, bson.M{"$set": bson.M{"lastLoginAt": at, "updatedAt": time.Now().UTC()}})
}

// UpsertCertificateSummary replaces the matching certificates[] entry or appends one.
func (r *mongoStudentRepository) UpsertCertificateSummary(ctx context.Context, email string, summary domain.CertificateSummary) error {
	now := time.Now().UTC()
	result, err := r.collection.UpdateOne(ctx,
		bson.M{"email": email, "certificates.domain": summary.Domain},
		bson.M{"$set": bson.M{"certificates.$": summary, "updatedAt": now}},
	)
	if err != nil {
		return err
	}
	if result.MatchedCount > 0 {
		return nil
	}

	// No entry for this domain yet; $ne guards against a concurrent append.
	result, err = r.collection.UpdateOne(ctx,
		bson.M{"email": email, "certificates.domain": bson.M{"$ne": summary.Domain}},
		bson.M{"$push": bson.M{"certificates": summary}, "$set": bson.M{"updatedAt": now}},
	)
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		// Either the student is gone or another request appended first.
		if _, err := r.GetByEmail(ctx, email); err != nil {
			return err
		}
	}
	return nil
}

func (r *mongoStudentRepository) updateByID(ctx context.Context, id primitive.ObjectID, update bson.M) error {
	result, err := r.collection.UpdateOne(ctx, bson.M{"_id": id}, update)
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func studentIndexes() []mongo.IndexModel {
	return []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "email", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			// Searching by name within a college
			Keys:    bson.D{{Key: "name", Value: 1}, {Key: "college", Value: 1}},
			Options: options.Index(),
		},
	}
}

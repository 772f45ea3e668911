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

const internshipCollectionName = "internships"

// mongoInternshipRepository implements repository.InternshipRepository
type mongoInternshipRepository struct {
	collection *mongo.Collection
}

// NewMongoInternshipRepository creates a new Internship repository backed by MongoDB.
func NewMongoInternshipRepository(db *mongo.Database) repository.InternshipRepository {
	return &mongoInternshipRepository{
		collection: db.Collection(internshipCollectionName),
	}
}

// Create inserts a new internship. The unique (studentEmail, domain) index
// turns a second enrollment into repository.ErrDuplicate.
func (r *mongoInternshipRepository) Create(ctx context.Context, internship *domain.Internship) (primitive.ObjectID, error) {
	if internship.StudentEmail == "" || internship.Domain == "" {
		return primitive.NilObjectID, errors.New("internship requires studentEmail and domain")
	}

	internship.ID = primitive.NewObjectID()
	now := time.Now().UTC()
	internship.CreatedAt = now
	internship.UpdatedAt = now
	if internship.StartDate.IsZero() {
		internship.StartDate = now
	}
	if internship.Status == "" {
		internship.Status = domain.InternshipActive
	}
	if internship.TotalTasks == 0 {
		internship.TotalTasks = domain.TotalTasks
	}

	result, err := r.collection.InsertOne(ctx, internship)
	if err != nil {
		if isDuplicate(err) {
			return primitive.NilObjectID, repository.ErrDuplicate
		}
		return primitive.NilObjectID, err
	}

	insertedID, ok := result.InsertedID.(primitive.ObjectID)
	if !ok {
		return primitive.NilObjectID, errors.New("failed to convert inserted internship ID")
	}
	return insertedID, nil
}

func (r *mongoInternshipRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*domain.Internship, error) {
	return r.findOne(ctx, bson.M{"_id": id})
}

func (r *mongoInternshipRepository) GetByIDForStudent(ctx context.Context, id primitive.ObjectID, studentEmail string) (*domain.Internship, error) {
	return r.findOne(ctx, bson.M{"_id": id, "studentEmail": studentEmail})
}

func (r *mongoInternshipRepository) GetByStudentAndDomain(ctx context.Context, studentEmail, domainName string) (*domain.Internship, error) {
	return r.findOne(ctx, bson.M{"studentEmail": studentEmail, "domain": domainName})
}

func (r *mongoInternshipRepository) GetByCertificateNumber(ctx context.Context, number string) (*domain.Internship, error) {
	return r.findOne(ctx, bson.M{"certificateNumber": number})
}

func (r *mongoInternshipRepository) findOne(ctx context.Context, filter bson.M) (*domain.Internship, error) {
	var internship domain.Internship
	err := r.collection.FindOne(ctx, filter).Decode(&internship)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &internship, nil
}

// ListByStudent returns the student's internships, newest first.
func (r *mongoInternshipRepository) ListByStudent(ctx context.Context, studentEmail string) ([]domain.Internship, error) {
	return r.find(ctx, bson.M{"studentEmail": studentEmail},
		options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}}))
}

// ListEligibleByStudent returns eligible internships, most recently certified first.
func (r *mongoInternshipRepository) ListEligibleByStudent(ctx context.Context, studentEmail string) ([]domain.Internship, error) {
	return r.find(ctx, bson.M{"studentEmail": studentEmail, "isEligibleForCertificate": true},
		options.Find().SetSort(bson.D{{Key: "certificateGeneratedAt", Value: -1}}))
}

func (r *mongoInternshipRepository) find(ctx context.Context, filter bson.M, opts *options.FindOptions) ([]domain.Internship, error) {
	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	internships := []domain.Internship{}
	if err = cursor.All(ctx, &internships); err != nil {
		return nil, err
	}
	if err = cursor.Err(); err != nil {
		return nil, err
	}
	return internships, nil
}

// UpdateStatus sets the lifecycle status and returns the updated document.
func (r *mongoInternshipRepository) UpdateStatus(ctx context.Context, id primitive.ObjectID, studentEmail string, status domain.InternshipStatus) (*domain.Internship, error) {
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var internship domain.Internship
	err := r.collection.FindOneAndUpdate(ctx,
		bson.M{"_id": id, "studentEmail": studentEmail},
		bson.M{"$set": bson.M{"status": status, "updatedAt": time.Now().UTC()}},
		opts,
	).Decode(&internship)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &internship, nil
}

// SaveProgress writes the completion count and its derived fields.
func (r *mongoInternshipRepository) SaveProgress(ctx context.Context, internship *domain.Internship) error {
	set := bson.M{
		"taskCompletedCount": internship.TaskCompletedCount,
		"progress":           internship.Progress,
		"lastActivityAt":     internship.LastActivityAt,
		"updatedAt":          time.Now().UTC(),
	}
	if internship.IsEligibleForCertificate {
		// Eligibility is only ever granted here, never revoked.
		set["isEligibleForCertificate"] = true
		set["certificateUnlockedReason"] = internship.CertificateUnlockedReason
	}
	return r.updateByID(ctx, internship.ID, bson.M{"$set": set})
}

func (r *mongoInternshipRepository) SetPaid(ctx context.Context, id primitive.ObjectID) error {
	return r.updateByID(ctx, id, bson.M{"$set": bson.M{"hasPaidForCertificate": true, "updatedAt": time.Now().UTC()}})
}

// AssignCertificate is a compare-and-set on certificateGeneratedAt, so two
// concurrent generations cannot both win.
func (r *mongoInternshipRepository) AssignCertificate(ctx context.Context, internship *domain.Internship) error {
	if internship.CertificateGeneratedAt == nil || internship.CertificateNumber == "" {
		return errors.New("certificate number and generation time are required")
	}
	filter := bson.M{
		"_id":                    internship.ID,
		"certificateGeneratedAt": bson.M{"$eq": nil},
	}
	update := bson.M{"$set": bson.M{
		"isEligibleForCertificate":  true,
		"certificateUnlockedReason": internship.CertificateUnlockedReason,
		"certificateNumber":         internship.CertificateNumber,
		"certificateGeneratedAt":    internship.CertificateGeneratedAt,
		"certificateURL":            internship.CertificateURL,
		"canDownload":               internship.CanDownload,
		"updatedAt":                 time.Now().UTC(),
	}}

	result, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		if isDuplicate(err) {
			return repository.ErrDuplicate
		}
		return err
	}
	if result.MatchedCount == 0 {
		if _, err := r.GetByID(ctx, internship.ID); err != nil {
			return err
		}
		return repository.ErrConflict
	}
	return nil
}

func (r *mongoInternshipRepository) SetCertificateArtifact(ctx context.Context, id primitive.ObjectID, objectKey string) error {
	return r.updateByID(ctx, id, bson.M{"$set": bson.M{"certificateObjectKey": objectKey, "updatedAt": time.Now().UTC()}})
}

func (r *mongoInternshipRepository) updateByID(ctx context.Context, id primitive.ObjectID, update bson.M) error {
	result, err := r.collection.UpdateOne(ctx, bson.M{"_id": id}, update)
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func internshipIndexes() []mongo.IndexModel {
	return []mongo.IndexModel{
		{
			// One internship per student and domain
			Keys:    bson.D{{Key: "studentEmail", Value: 1}, {Key: "domain", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			// Certificate tracking
			Keys:    bson.D{{Key: "isEligibleForCertificate", Value: 1}, {Key: "certificateGeneratedAt", Value: 1}},
			Options: options.Index(),
		},
		{
			// Public verification lookups; sparse because most internships have no number yet
			Keys:    bson.D{{Key: "certificateNumber", Value: 1}},
			Options: options.Index().SetUnique(true).SetSparse(true),
		},
	}
}

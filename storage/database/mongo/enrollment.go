package mongorepos

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/trezcool/edusource/core/course"
	"github.com/trezcool/edusource/core/enrollment"
)

const enrollmentsCollection = "enrollments"

type enrollmentDoc struct {
	ID             string    `bson:"_id"`
	UserID         string    `bson:"userId"`
	CourseID       string    `bson:"courseId"`
	CourseTitle    string    `bson:"courseTitle"`
	EnrollmentType string    `bson:"enrollmentType"`
	Status         string    `bson:"status"`
	PaymentID      string    `bson:"paymentId,omitempty"`
	EnrolledAt     time.Time `bson:"enrolledAt"`
}

func (doc enrollmentDoc) toRecord() enrollment.Record {
	return enrollment.Record{
		ID:             doc.ID,
		UserID:         doc.UserID,
		CourseID:       doc.CourseID,
		CourseTitle:    doc.CourseTitle,
		EnrollmentType: course.Type(doc.EnrollmentType),
		Status:         enrollment.Status(doc.Status),
		PaymentID:      doc.PaymentID,
		EnrolledAt:     doc.EnrolledAt.UTC(),
	}
}

type enrollmentRepository struct {
	coll *mongo.Collection
}

var _ enrollment.Repository = (*enrollmentRepository)(nil)

func NewEnrollmentRepository(db *mongo.Database) enrollment.Repository {
	return &enrollmentRepository{coll: db.Collection(enrollmentsCollection)}
}

func (repo *enrollmentRepository) CreateRecord(ctx context.Context, rec enrollment.Record) (enrollment.Record, error) {
	// millisecond precision, as stored by mongo
	rec.EnrolledAt = time.Now().UTC().Truncate(time.Millisecond)
	_, err := repo.coll.InsertOne(ctx, enrollmentDoc{
		ID:             rec.ID,
		UserID:         rec.UserID,
		CourseID:       rec.CourseID,
		CourseTitle:    rec.CourseTitle,
		EnrollmentType: string(rec.EnrollmentType),
		Status:         string(rec.Status),
		PaymentID:      rec.PaymentID,
		EnrolledAt:     rec.EnrolledAt,
	})
	if err != nil {
		return enrollment.Record{}, errors.Wrap(err, "inserting enrollment")
	}
	return rec, nil
}

func (repo *enrollmentRepository) FilterRecords(ctx context.Context, filter enrollment.RecordFilter) ([]enrollment.Record, error) {
	query := bson.M{}
	if filter.UserID != "" {
		query["userId"] = filter.UserID
	}
	if filter.CourseID != "" {
		query["courseId"] = filter.CourseID
	}

	opts := options.Find().SetSort(bson.D{{Key: "enrolledAt", Value: -1}, {Key: "_id", Value: 1}})
	cursor, err := repo.coll.Find(ctx, query, opts)
	if err != nil {
		return nil, errors.Wrap(err, "finding enrollments")
	}
	var docs []enrollmentDoc
	if err = cursor.All(ctx, &docs); err != nil {
		return nil, errors.Wrap(err, "decoding enrollments")
	}

	recs := make([]enrollment.Record, 0, len(docs))
	for _, doc := range docs {
		recs = append(recs, doc.toRecord())
	}
	return recs, nil
}

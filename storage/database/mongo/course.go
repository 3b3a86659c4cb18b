package mongorepos

import (
	"context"
	"regexp"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/trezcool/edusource/core"
	"github.com/trezcool/edusource/core/course"
)

const coursesCollection = "courses"

// orderable fields
var courseOrderings = map[string]string{
	"title":      "title",
	"price":      "price",
	"created_at": "createdAt",
}

type courseDoc struct {
	ID               string               `bson:"_id"`
	Title            string               `bson:"title"`
	ShortDescription string               `bson:"shortDescription"`
	Description      string               `bson:"description"`
	Specialization   string               `bson:"specialization"`
	AuthorID         string               `bson:"authorId"`
	AuthorName       string               `bson:"authorName"`
	Price            primitive.Decimal128 `bson:"price"`
	Type             string               `bson:"type"`
	EnrolledUsers    []string             `bson:"enrolledUsers"`
	CreatedAt        time.Time            `bson:"createdAt"`
	UpdatedAt        time.Time            `bson:"updatedAt"`
}

func newCourseDoc(crs course.Course) (courseDoc, error) {
	price, err := primitive.ParseDecimal128(crs.Price.String())
	if err != nil {
		return courseDoc{}, errors.Wrap(err, "converting price")
	}
	enrolled := crs.EnrolledUsers
	if enrolled == nil {
		enrolled = []string{}
	}
	return courseDoc{
		ID:               crs.ID,
		Title:            crs.Title,
		ShortDescription: crs.ShortDescription,
		Description:      crs.Description,
		Specialization:   crs.Specialization,
		AuthorID:         crs.AuthorID,
		AuthorName:       crs.AuthorName,
		Price:            price,
		Type:             string(crs.Type),
		EnrolledUsers:    enrolled,
		CreatedAt:        crs.CreatedAt,
		UpdatedAt:        crs.UpdatedAt,
	}, nil
}

func (doc courseDoc) toCourse() (course.Course, error) {
	price, err := decimal.NewFromString(doc.Price.String())
	if err != nil {
		return course.Course{}, errors.Wrap(err, "converting price")
	}
	enrolled := doc.EnrolledUsers
	if enrolled == nil {
		enrolled = []string{}
	}
	return course.Course{
		ID:               doc.ID,
		Title:            doc.Title,
		ShortDescription: doc.ShortDescription,
		Description:      doc.Description,
		Specialization:   doc.Specialization,
		AuthorID:         doc.AuthorID,
		AuthorName:       doc.AuthorName,
		Price:            price,
		Type:             course.Type(doc.Type),
		EnrolledUsers:    enrolled,
		CreatedAt:        doc.CreatedAt.UTC(),
		UpdatedAt:        doc.UpdatedAt.UTC(),
	}, nil
}

type courseRepository struct {
	coll *mongo.Collection
}

var _ course.Repository = (*courseRepository)(nil)

func NewCourseRepository(db *mongo.Database) course.Repository {
	return &courseRepository{coll: db.Collection(coursesCollection)}
}

func (repo *courseRepository) CreateCourse(ctx context.Context, crs course.Course) (course.Course, error) {
	doc, err := newCourseDoc(crs)
	if err != nil {
		return course.Course{}, err
	}
	if _, err = repo.coll.InsertOne(ctx, doc); err != nil {
		return course.Course{}, errors.Wrap(err, "inserting course")
	}
	return crs, nil
}

func (repo *courseRepository) GetCourse(ctx context.Context, id string) (course.Course, error) {
	var doc courseDoc
	if err := repo.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return course.Course{}, course.ErrNotFound
		}
		return course.Course{}, errors.Wrap(err, "finding course")
	}
	return doc.toCourse()
}

func (repo *courseRepository) FilterCourses(ctx context.Context, filter course.QueryFilter, ordering ...core.DBOrdering) ([]course.Course, error) {
	query := bson.M{}
	if filter.Type != "" {
		query["type"] = string(filter.Type)
	}
	if filter.Specialization != "" {
		query["specialization"] = primitive.Regex{Pattern: "^" + regexp.QuoteMeta(filter.Specialization) + "$", Options: "i"}
	}
	if filter.EnrolledUser != "" {
		query["enrolledUsers"] = filter.EnrolledUser // array contains
	}

	sort := bson.D{}
	for _, ord := range ordering {
		if fld, ok := courseOrderings[ord.Field]; ok {
			dir := -1
			if ord.Ascending {
				dir = 1
			}
			sort = append(sort, bson.E{Key: fld, Value: dir})
		}
	}
	if len(sort) == 0 {
		sort = append(sort, bson.E{Key: "createdAt", Value: -1})
	}
	sort = append(sort, bson.E{Key: "_id", Value: 1})

	cursor, err := repo.coll.Find(ctx, query, options.Find().SetSort(sort))
	if err != nil {
		return nil, errors.Wrap(err, "finding courses")
	}
	var docs []courseDoc
	if err = cursor.All(ctx, &docs); err != nil {
		return nil, errors.Wrap(err, "decoding courses")
	}

	courses := make([]course.Course, 0, len(docs))
	for _, doc := range docs {
		crs, err := doc.toCourse()
		if err != nil {
			return nil, err
		}
		courses = append(courses, crs)
	}
	return courses, nil
}

// AddEnrolledUser uses $addToSet: commutative and idempotent.
func (repo *courseRepository) AddEnrolledUser(ctx context.Context, courseID, userID string) error {
	res, err := repo.coll.UpdateOne(ctx, bson.M{"_id": courseID}, bson.M{
		"$addToSet": bson.M{"enrolledUsers": userID},
		"$set":      bson.M{"updatedAt": time.Now().UTC()},
	})
	if err != nil {
		return errors.Wrap(err, "adding enrolled user")
	}
	if res.MatchedCount == 0 {
		return course.ErrNotFound
	}
	return nil
}

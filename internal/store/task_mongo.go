package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/tasktrac/apiserver/types"
)

// taskSortFields whitelists caller-selectable sort fields for the
// document backend. Keys are the JSON field names used on the wire.
var taskSortFields = map[string]string{
	"startDate": "start_date",
	"endDate":   "end_date",
	"createdAt": "created_at",
	"updatedAt": "updated_at",
	"title":     "title",
}

// taskDoc is the BSON shape of a task. The _id is a native ObjectID;
// the adapter converts to and from the string ids the contract uses.
type taskDoc struct {
	ID          primitive.ObjectID `bson:"_id,omitempty"`
	Title       string             `bson:"title"`
	Description string             `bson:"description"`
	StartDate   time.Time          `bson:"start_date"`
	EndDate     time.Time          `bson:"end_date"`
	Completed   bool               `bson:"completed"`
	UserID      string             `bson:"user_id"`
	CreatedAt   time.Time          `bson:"created_at"`
	UpdatedAt   time.Time          `bson:"updated_at"`
}

func (d taskDoc) toTask() types.Task {
	return types.Task{
		ID:          d.ID.Hex(),
		Title:       d.Title,
		Description: d.Description,
		StartDate:   d.StartDate,
		EndDate:     d.EndDate,
		Completed:   d.Completed,
		UserID:      d.UserID,
		CreatedAt:   d.CreatedAt,
		UpdatedAt:   d.UpdatedAt,
	}
}

// MongoTaskStore is the document task adapter.
type MongoTaskStore struct {
	coll *mongo.Collection
}

func NewMongoTaskStore(db *mongo.Database) *MongoTaskStore {
	return &MongoTaskStore{coll: db.Collection("tasks")}
}

func (s *MongoTaskStore) Create(ctx context.Context, task types.Task) (types.Task, error) {
	now := time.Now()
	doc := taskDoc{
		ID:          primitive.NewObjectID(),
		Title:       task.Title,
		Description: task.Description,
		StartDate:   task.StartDate,
		EndDate:     task.EndDate,
		Completed:   task.Completed,
		UserID:      task.UserID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	result, err := s.coll.InsertOne(ctx, doc)
	if err != nil {
		return types.Task{}, fmt.Errorf("create task: %w", err)
	}
	if result.InsertedID == nil {
		return types.Task{}, ErrNotCreated
	}
	return doc.toTask(), nil
}

func (s *MongoTaskStore) GetOne(ctx context.Context, filter TaskFilter) (types.Task, error) {
	query, err := taskQuery(filter)
	if err != nil {
		return types.Task{}, ErrNotFound
	}

	var doc taskDoc
	if err := s.coll.FindOne(ctx, query).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return types.Task{}, ErrNotFound
		}
		return types.Task{}, fmt.Errorf("get task: %w", err)
	}
	return doc.toTask(), nil
}

func (s *MongoTaskStore) GetMany(ctx context.Context, filter TaskFilter) ([]types.Task, error) {
	query, err := taskQuery(filter)
	if err != nil {
		return nil, ErrNotFound
	}

	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	cursor, err := s.coll.Find(ctx, query, opts)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	tasks, err := drainTasks(ctx, cursor)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	if len(tasks) == 0 {
		return nil, ErrNotFound
	}
	return tasks, nil
}

func (s *MongoTaskStore) UpdateOne(ctx context.Context, filter TaskFilter, patch types.TaskPatch) (types.Task, error) {
	if patch.IsZero() {
		return types.Task{}, ErrNotUpdated
	}
	query, err := taskQuery(filter)
	if err != nil {
		return types.Task{}, ErrNotUpdated
	}

	set := bson.M{"updated_at": time.Now()}
	if patch.Title != nil {
		set["title"] = *patch.Title
	}
	if patch.Description != nil {
		set["description"] = *patch.Description
	}
	if patch.Completed != nil {
		set["completed"] = *patch.Completed
	}
	if patch.EndDate != nil {
		set["end_date"] = *patch.EndDate
	}

	result, err := s.coll.UpdateOne(ctx, query, bson.M{"$set": set})
	if err != nil {
		return types.Task{}, fmt.Errorf("update task: %w", err)
	}
	if result.MatchedCount == 0 {
		return types.Task{}, ErrNotUpdated
	}

	return s.GetOne(ctx, filter)
}

func (s *MongoTaskStore) DeleteOne(ctx context.Context, filter TaskFilter) error {
	query, err := taskQuery(filter)
	if err != nil {
		return ErrNotDeleted
	}

	result, err := s.coll.DeleteOne(ctx, query)
	if err != nil {
		return fmt.Errorf("delete task: %w", err)
	}
	if result.DeletedCount == 0 {
		return ErrNotDeleted
	}
	return nil
}

func (s *MongoTaskStore) GetManyPaginated(ctx context.Context, filter TaskFilter, page Page) ([]types.Task, Pagination, error) {
	page = page.Normalize()
	query, err := taskQuery(filter)
	if err != nil {
		return []types.Task{}, NewPagination(page, 0), nil
	}

	count, err := s.coll.CountDocuments(ctx, query)
	if err != nil {
		return nil, Pagination{}, fmt.Errorf("count tasks: %w", err)
	}

	sortField := "created_at"
	if field, ok := taskSortFields[page.SortBy]; ok {
		sortField = field
	}
	direction := -1
	if page.Order == SortAsc {
		direction = 1
	}

	opts := options.Find().
		SetSort(bson.D{{Key: sortField, Value: direction}}).
		SetSkip(int64(page.Offset())).
		SetLimit(int64(page.PageSize))
	cursor, err := s.coll.Find(ctx, query, opts)
	if err != nil {
		return nil, Pagination{}, fmt.Errorf("list tasks: %w", err)
	}
	tasks, err := drainTasks(ctx, cursor)
	if err != nil {
		return nil, Pagination{}, fmt.Errorf("list tasks: %w", err)
	}
	return tasks, NewPagination(page, int(count)), nil
}

// taskQuery builds the owner-scoped BSON filter. A malformed task id is
// reported as an error so callers can map it to the not-found family
// rather than querying with a zero ObjectID.
func taskQuery(filter TaskFilter) (bson.M, error) {
	query := bson.M{"user_id": filter.OwnerID}
	if filter.ID != "" {
		oid, err := primitive.ObjectIDFromHex(filter.ID)
		if err != nil {
			return nil, err
		}
		query["_id"] = oid
	}
	if filter.Completed != nil {
		query["completed"] = *filter.Completed
	}
	if filter.StartFrom != nil {
		query["start_date"] = bson.M{"$gte": *filter.StartFrom}
	}
	if filter.EndTo != nil {
		query["end_date"] = bson.M{"$lte": *filter.EndTo}
	}
	return query, nil
}

func drainTasks(ctx context.Context, cursor *mongo.Cursor) ([]types.Task, error) {
	defer cursor.Close(ctx)

	tasks := make([]types.Task, 0)
	for cursor.Next(ctx) {
		var doc taskDoc
		if err := cursor.Decode(&doc); err != nil {
			return nil, err
		}
		tasks = append(tasks, doc.toTask())
	}
	return tasks, cursor.Err()
}

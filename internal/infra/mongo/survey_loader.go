package mongo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"survey-flow-service/internal/domain"
)

// surveyDocument keeps the survey body as its JSON text so the same decoding path
// serves Postgres, Redis and Mongo.
type surveyDocument struct {
	ID        int64     `bson:"_id"`
	Title     string    `bson:"title"`
	Active    bool      `bson:"active"`
	Data      string    `bson:"data"`
	UpdatedAt time.Time `bson:"updatedAt"`
}

// SurveyLoader reads surveys from the "surveys" collection.
type SurveyLoader struct {
	collection *mongo.Collection
}

func NewSurveyLoader(db *mongo.Database) *SurveyLoader {
	return &SurveyLoader{collection: db.Collection("surveys")}
}

func (l *SurveyLoader) LoadSurvey(ctx context.Context, surveyID int64) (domain.Survey, error) {
	var doc surveyDocument
	err := l.collection.FindOne(ctx, bson.M{"_id": surveyID}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return domain.Survey{}, fmt.Errorf("%w: %d", domain.ErrSurveyNotFound, surveyID)
	}
	if err != nil {
		return domain.Survey{}, fmt.Errorf("find survey: %w", err)
	}

	var survey domain.Survey
	if err := json.Unmarshal([]byte(doc.Data), &survey); err != nil {
		return domain.Survey{}, fmt.Errorf("unmarshal survey: %w", err)
	}
	survey.ID = surveyID
	survey.Active = doc.Active
	return survey, nil
}

func (l *SurveyLoader) SetActive(ctx context.Context, surveyID int64, active bool) error {
	res, err := l.collection.UpdateOne(ctx,
		bson.M{"_id": surveyID},
		bson.M{"$set": bson.M{"active": active, "updatedAt": time.Now().UTC()}},
	)
	if err != nil {
		return fmt.Errorf("set survey active: %w", err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("%w: %d", domain.ErrSurveyNotFound, surveyID)
	}
	return nil
}

func (l *SurveyLoader) SaveSurvey(ctx context.Context, survey domain.Survey) error {
	data, err := json.Marshal(survey)
	if err != nil {
		return err
	}
	doc := surveyDocument{
		ID:        survey.ID,
		Title:     survey.Title,
		Active:    survey.Active,
		Data:      string(data),
		UpdatedAt: time.Now().UTC(),
	}
	_, err = l.collection.ReplaceOne(ctx, bson.M{"_id": survey.ID}, doc, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("save survey: %w", err)
	}
	return nil
}

// Connect dials Mongo and checks the connection.
func Connect(ctx context.Context, uri, database string) (*mongo.Client, *mongo.Database, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, nil, fmt.Errorf("mongo connect: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, nil, fmt.Errorf("mongo ping: %w", err)
	}
	return client, client.Database(database), nil
}

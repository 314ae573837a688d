package persistence

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/dynamodb"
	"github.com/aws/aws-sdk-go/service/dynamodb/dynamodbattribute"
	"github.com/aws/aws-sdk-go/service/dynamodb/dynamodbiface"
	"github.com/molpadia/molpaupload/internal/domain/entity"
	"github.com/rs/zerolog/log"
)

type UploadRepository struct {
	db        dynamodbiface.DynamoDBAPI
	tableName string
}

func NewUploadRepository(sess *session.Session, tableName string) *UploadRepository {
	return &UploadRepository{dynamodb.New(sess), tableName}
}

// Get the completed upload by its identifier.
func (r *UploadRepository) GetById(ctx context.Context, id string) (*entity.Upload, error) {
	out, err := r.db.GetItemWithContext(ctx, &dynamodb.GetItemInput{
		Key:       map[string]*dynamodb.AttributeValue{"Id": {S: aws.String(id)}},
		TableName: aws.String(r.tableName),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get upload %q: %w", id, err)
	}
	if len(out.Item) == 0 {
		return nil, nil
	}
	var upload *entity.Upload
	if err := dynamodbattribute.UnmarshalMap(out.Item, &upload); err != nil {
		return nil, fmt.Errorf("failed to unmarshal upload %q: %w", id, err)
	}
	return upload, nil
}

// Save a completed upload to the persistence.
func (r *UploadRepository) Save(ctx context.Context, upload *entity.Upload) error {
	av, err := dynamodbattribute.MarshalMap(upload)
	if err != nil {
		return err
	}
	_, err = r.db.PutItemWithContext(ctx, &dynamodb.PutItemInput{
		Item:      av,
		TableName: aws.String(r.tableName),
	})
	if err != nil {
		log.Error().Err(err).Str("id", upload.Id).Msg("failed to save upload record")
		return fmt.Errorf("failed to save upload %q: %w", upload.Id, err)
	}
	return nil
}

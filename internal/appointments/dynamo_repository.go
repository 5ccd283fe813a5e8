package appointments

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"
	"github.com/myclarix/lumina/pkg/logging"
)

const (
	// DynamoIDIndex is the global secondary index keyed on appointment id.
	DynamoIDIndex = "id-index"

	clientKeyPrefix = "CLIENT#"
	slotKeyPrefix   = "SLOT#"
	slotLayout      = "2006-01-02T15:04:05"
)

type dynamoAPI interface {
	PutItem(context.Context, *dynamodb.PutItemInput, ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	GetItem(context.Context, *dynamodb.GetItemInput, ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	Query(context.Context, *dynamodb.QueryInput, ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	Scan(context.Context, *dynamodb.ScanInput, ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
	DeleteItem(context.Context, *dynamodb.DeleteItemInput, ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
	TransactWriteItems(context.Context, *dynamodb.TransactWriteItemsInput, ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error)
}

// dynamoItem is one appointment row. The partition key groups a client's
// appointments and the sort key is the slot, so the (pk, sk) pair enforces
// one appointment per client per slot.
type dynamoItem struct {
	PK        string `dynamodbav:"pk"`
	SK        string `dynamodbav:"sk"`
	ID        string `dynamodbav:"id"`
	ClientID  string `dynamodbav:"clientId"`
	DateTime  string `dynamodbav:"dateTime"`
	Purpose   string `dynamodbav:"purpose,omitempty"`
	Status    string `dynamodbav:"status"`
	CreatedAt string `dynamodbav:"createdAt"`
	UpdatedAt string `dynamodbav:"updatedAt"`
}

// DynamoRepository persists appointments to a DynamoDB table with string
// keys pk and sk and a GSI named DynamoIDIndex on id.
type DynamoRepository struct {
	client    dynamoAPI
	tableName string
	logger    *logging.Logger
	now       func() time.Time
}

var _ Repository = (*DynamoRepository)(nil)

// NewDynamoRepository builds a repository backed by the provided client.
func NewDynamoRepository(client dynamoAPI, tableName string, logger *logging.Logger) *DynamoRepository {
	if client == nil {
		panic("appointments: dynamodb client cannot be nil")
	}
	if tableName == "" {
		panic("appointments: table name cannot be empty")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &DynamoRepository{
		client:    client,
		tableName: tableName,
		logger:    logger,
		now:       time.Now,
	}
}

func partitionKey(clientID string) string { return clientKeyPrefix + clientID }

func sortKey(at time.Time) string { return slotKeyPrefix + at.Format(slotLayout) }

func keyAttributes(clientID string, at time.Time) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"pk": &types.AttributeValueMemberS{Value: partitionKey(clientID)},
		"sk": &types.AttributeValueMemberS{Value: sortKey(at)},
	}
}

func (r *DynamoRepository) Create(ctx context.Context, clientID string, at time.Time, purpose string) (*Appointment, error) {
	if err := validateCreate(clientID, at); err != nil {
		return nil, err
	}
	now := r.now()
	appt := &Appointment{
		ID:        uuid.New().String(),
		ClientID:  clientID,
		DateTime:  Slot(at),
		Purpose:   NormalizePurpose(purpose),
		Status:    StatusConfirmed,
		CreatedAt: now,
		UpdatedAt: now,
	}
	item, err := attributevalue.MarshalMap(toDynamoItem(appt))
	if err != nil {
		return nil, fmt.Errorf("appointments: failed to marshal appointment: %w", err)
	}

	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(r.tableName),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(pk) AND attribute_not_exists(sk)"),
	})
	if err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			return nil, ErrConflict
		}
		return nil, fmt.Errorf("appointments: failed to persist appointment: %w", err)
	}
	return appt, nil
}

func (r *DynamoRepository) FindConflicting(ctx context.Context, clientID string, at time.Time) (*Appointment, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(r.tableName),
		Key:            keyAttributes(clientID, Slot(at)),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("appointments: failed to fetch slot: %w", err)
	}
	if out.Item == nil {
		return nil, nil
	}
	return decodeItem(out.Item)
}

func (r *DynamoRepository) List(ctx context.Context, clientID string) ([]*Appointment, error) {
	var items []map[string]types.AttributeValue
	if clientID == "" {
		var start map[string]types.AttributeValue
		for {
			out, err := r.client.Scan(ctx, &dynamodb.ScanInput{
				TableName:        aws.String(r.tableName),
				FilterExpression: aws.String("begins_with(sk, :slot)"),
				ExpressionAttributeValues: map[string]types.AttributeValue{
					":slot": &types.AttributeValueMemberS{Value: slotKeyPrefix},
				},
				ExclusiveStartKey: start,
			})
			if err != nil {
				return nil, fmt.Errorf("appointments: failed to scan appointments: %w", err)
			}
			items = append(items, out.Items...)
			if len(out.LastEvaluatedKey) == 0 {
				break
			}
			start = out.LastEvaluatedKey
		}
	} else {
		var start map[string]types.AttributeValue
		for {
			out, err := r.client.Query(ctx, &dynamodb.QueryInput{
				TableName:              aws.String(r.tableName),
				KeyConditionExpression: aws.String("pk = :pk AND begins_with(sk, :slot)"),
				ExpressionAttributeValues: map[string]types.AttributeValue{
					":pk":   &types.AttributeValueMemberS{Value: partitionKey(clientID)},
					":slot": &types.AttributeValueMemberS{Value: slotKeyPrefix},
				},
				ScanIndexForward:  aws.Bool(true),
				ExclusiveStartKey: start,
			})
			if err != nil {
				return nil, fmt.Errorf("appointments: failed to query appointments: %w", err)
			}
			items = append(items, out.Items...)
			if len(out.LastEvaluatedKey) == 0 {
				break
			}
			start = out.LastEvaluatedKey
		}
	}

	list := make([]*Appointment, 0, len(items))
	for _, item := range items {
		appt, err := decodeItem(item)
		if err != nil {
			return nil, err
		}
		list = append(list, appt)
	}
	sortByDateTime(list)
	return list, nil
}

func (r *DynamoRepository) Get(ctx context.Context, id string) (*Appointment, error) {
	if strings.TrimSpace(id) == "" {
		return nil, ErrNotFound
	}
	out, err := r.client.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(r.tableName),
		IndexName:              aws.String(DynamoIDIndex),
		KeyConditionExpression: aws.String("id = :id"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":id": &types.AttributeValueMemberS{Value: id},
		},
		Limit: aws.Int32(1),
	})
	if err != nil {
		return nil, fmt.Errorf("appointments: failed to fetch appointment: %w", err)
	}
	if len(out.Items) == 0 {
		return nil, ErrNotFound
	}
	return decodeItem(out.Items[0])
}

func (r *DynamoRepository) Update(ctx context.Context, id string, req UpdateRequest) (*Appointment, error) {
	current, err := r.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	updated := clone(current)
	if err := req.apply(updated); err != nil {
		return nil, err
	}
	updated.UpdatedAt = r.now()

	item, err := attributevalue.MarshalMap(toDynamoItem(updated))
	if err != nil {
		return nil, fmt.Errorf("appointments: failed to marshal appointment: %w", err)
	}

	if sortKey(updated.DateTime) == sortKey(current.DateTime) {
		_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
			TableName:           aws.String(r.tableName),
			Item:                item,
			ConditionExpression: aws.String("attribute_exists(pk)"),
		})
		if err != nil {
			var ccf *types.ConditionalCheckFailedException
			if errors.As(err, &ccf) {
				return nil, ErrNotFound
			}
			return nil, fmt.Errorf("appointments: failed to update appointment: %w", err)
		}
		return updated, nil
	}

	// Moving to a new slot rewrites the key, so delete and insert atomically.
	_, err = r.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: []types.TransactWriteItem{
			{
				Delete: &types.Delete{
					TableName:           aws.String(r.tableName),
					Key:                 keyAttributes(current.ClientID, current.DateTime),
					ConditionExpression: aws.String("attribute_exists(pk)"),
				},
			},
			{
				Put: &types.Put{
					TableName:           aws.String(r.tableName),
					Item:                item,
					ConditionExpression: aws.String("attribute_not_exists(pk) AND attribute_not_exists(sk)"),
				},
			},
		},
	})
	if err != nil {
		var canceled *types.TransactionCanceledException
		if errors.As(err, &canceled) {
			return nil, cancellationError(canceled)
		}
		return nil, fmt.Errorf("appointments: failed to move appointment: %w", err)
	}
	return updated, nil
}

// cancellationError maps transaction cancellation reasons: the first item
// failing means the old row vanished, the second means the slot is taken.
func cancellationError(err *types.TransactionCanceledException) error {
	for i, reason := range err.CancellationReasons {
		if aws.ToString(reason.Code) != "ConditionalCheckFailed" {
			continue
		}
		if i == 0 {
			return ErrNotFound
		}
		return ErrConflict
	}
	return fmt.Errorf("appointments: transaction canceled: %w", err)
}

func (r *DynamoRepository) Delete(ctx context.Context, id string) error {
	appt, err := r.Get(ctx, id)
	if err != nil {
		return err
	}
	_, err = r.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(r.tableName),
		Key:       keyAttributes(appt.ClientID, appt.DateTime),
	})
	if err != nil {
		return fmt.Errorf("appointments: failed to delete appointment: %w", err)
	}
	return nil
}

func (r *DynamoRepository) Clear(ctx context.Context, clientID string) (int64, error) {
	list, err := r.List(ctx, clientID)
	if err != nil {
		return 0, err
	}
	var removed int64
	for _, appt := range list {
		_, err := r.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
			TableName: aws.String(r.tableName),
			Key:       keyAttributes(appt.ClientID, appt.DateTime),
		})
		if err != nil {
			return removed, fmt.Errorf("appointments: failed to delete appointment: %w", err)
		}
		removed++
	}
	r.logger.Info("appointments cleared", "client_id", clientID, "removed", removed)
	return removed, nil
}

func toDynamoItem(appt *Appointment) dynamoItem {
	return dynamoItem{
		PK:        partitionKey(appt.ClientID),
		SK:        sortKey(appt.DateTime),
		ID:        appt.ID,
		ClientID:  appt.ClientID,
		DateTime:  appt.DateTime.Format(slotLayout),
		Purpose:   appt.Purpose,
		Status:    string(appt.Status),
		CreatedAt: appt.CreatedAt.UTC().Format(time.RFC3339Nano),
		UpdatedAt: appt.UpdatedAt.UTC().Format(time.RFC3339Nano),
	}
}

func decodeItem(item map[string]types.AttributeValue) (*Appointment, error) {
	var rec dynamoItem
	if err := attributevalue.UnmarshalMap(item, &rec); err != nil {
		return nil, fmt.Errorf("appointments: failed to decode appointment: %w", err)
	}
	at, err := time.ParseInLocation(slotLayout, rec.DateTime, time.Local)
	if err != nil {
		return nil, fmt.Errorf("appointments: invalid dateTime %q: %w", rec.DateTime, err)
	}
	createdAt, _ := time.Parse(time.RFC3339Nano, rec.CreatedAt)
	updatedAt, _ := time.Parse(time.RFC3339Nano, rec.UpdatedAt)
	return &Appointment{
		ID:        rec.ID,
		ClientID:  rec.ClientID,
		DateTime:  at,
		Purpose:   rec.Purpose,
		Status:    Status(rec.Status),
		CreatedAt: createdAt,
		UpdatedAt: updatedAt,
	}, nil
}

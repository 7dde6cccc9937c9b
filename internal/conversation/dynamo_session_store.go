package conversation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"
)

type dynamoSessionAPI interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
}

// sessionItem is the table layout. expires_at is the table's TTL attribute.
type sessionItem struct {
	SessionID string `dynamodbav:"session_id"`
	State     string `dynamodbav:"state"`
	Version   int64  `dynamodbav:"version"`
	ExpiresAt int64  `dynamodbav:"expires_at"`
	UpdatedAt string `dynamodbav:"updated_at"`
}

// leaseItem shares the sessions table under a prefixed key.
type leaseItem struct {
	SessionID  string `dynamodbav:"session_id"`
	Owner      string `dynamodbav:"owner"`
	LeaseUntil int64  `dynamodbav:"lease_until"`
	ExpiresAt  int64  `dynamodbav:"expires_at"`
}

const leaseKeyPrefix = "lease#"

// DynamoSessionStore keeps sessions in a DynamoDB table keyed by session_id.
// Saves are conditional on the stored version.
type DynamoSessionStore struct {
	api       dynamoSessionAPI
	table     string
	ttl       time.Duration
	lease     time.Duration
	leaseWait time.Duration
	now       func() time.Time
	sleep     func(time.Duration)
}

func NewDynamoSessionStore(api dynamoSessionAPI, table string, ttl time.Duration) *DynamoSessionStore {
	if api == nil {
		panic("conversation: dynamodb client cannot be nil")
	}
	if table == "" {
		panic("conversation: sessions table name is required")
	}
	if ttl <= 0 {
		ttl = defaultSessionTTL
	}
	return &DynamoSessionStore{
		api:       api,
		table:     table,
		ttl:       ttl,
		lease:     defaultSessionLease,
		leaseWait: defaultLeaseWait,
		now:       time.Now,
		sleep:     time.Sleep,
	}
}

func (s *DynamoSessionStore) Save(ctx context.Context, sessionID string, state State) error {
	expected := state.Version
	state.Version = expected + 1
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("conversation: failed to marshal session: %w", err)
	}
	now := s.now().UTC()
	item, err := attributevalue.MarshalMap(sessionItem{
		SessionID: sessionID,
		State:     string(data),
		Version:   state.Version,
		ExpiresAt: now.Add(s.ttl).Unix(),
		UpdatedAt: now.Format(time.RFC3339),
	})
	if err != nil {
		return fmt.Errorf("conversation: failed to marshal session item: %w", err)
	}

	input := &dynamodb.PutItemInput{
		TableName: aws.String(s.table),
		Item:      item,
		ExpressionAttributeNames: map[string]string{
			"#exp": "expires_at",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":now": numberValue(now.Unix()),
		},
	}
	// An expired item counts as absent, matching Load.
	if expected == 0 {
		input.ConditionExpression = aws.String("attribute_not_exists(session_id) OR #exp <= :now")
	} else {
		input.ConditionExpression = aws.String("#ver = :expected AND #exp > :now")
		input.ExpressionAttributeNames["#ver"] = "version"
		input.ExpressionAttributeValues[":expected"] = numberValue(expected)
	}

	if _, err := s.api.PutItem(ctx, input); err != nil {
		var failed *types.ConditionalCheckFailedException
		if errors.As(err, &failed) {
			return ErrSessionConflict
		}
		return fmt.Errorf("conversation: failed to persist session: %w", err)
	}
	return nil
}

func (s *DynamoSessionStore) Load(ctx context.Context, sessionID string) (State, bool, error) {
	out, err := s.api.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.table),
		Key: map[string]types.AttributeValue{
			"session_id": &types.AttributeValueMemberS{Value: sessionID},
		},
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		var notFound *types.ResourceNotFoundException
		if errors.As(err, &notFound) {
			return State{}, false, fmt.Errorf("conversation: sessions table %s not found: %w", s.table, err)
		}
		return State{}, false, fmt.Errorf("conversation: failed to load session: %w", err)
	}
	if out == nil || len(out.Item) == 0 {
		return State{}, false, nil
	}

	var item sessionItem
	if err := attributevalue.UnmarshalMap(out.Item, &item); err != nil {
		return State{}, false, fmt.Errorf("conversation: failed to decode session item: %w", err)
	}
	// TTL deletion is lazy on DynamoDB's side.
	if item.ExpiresAt > 0 && s.now().Unix() >= item.ExpiresAt {
		return State{}, false, nil
	}

	var state State
	if err := json.Unmarshal([]byte(item.State), &state); err != nil {
		return State{}, false, fmt.Errorf("conversation: failed to decode session: %w", err)
	}
	state.Version = item.Version
	return state.normalize(), true, nil
}

// Lock takes the session lease with a conditional put, polling until
// leaseWait elapses. A lease left behind by a crashed holder is taken over
// once lease_until has passed.
func (s *DynamoSessionStore) Lock(ctx context.Context, sessionID string) (func(), error) {
	key := leaseKeyPrefix + sessionID
	owner := uuid.NewString()
	deadline := s.now().Add(s.leaseWait)

	for {
		now := s.now().UTC()
		item, err := attributevalue.MarshalMap(leaseItem{
			SessionID:  key,
			Owner:      owner,
			LeaseUntil: now.Add(s.lease).Unix(),
			ExpiresAt:  now.Add(s.lease).Add(time.Hour).Unix(),
		})
		if err != nil {
			return nil, fmt.Errorf("conversation: failed to marshal session lease: %w", err)
		}
		_, err = s.api.PutItem(ctx, &dynamodb.PutItemInput{
			TableName:                 aws.String(s.table),
			Item:                      item,
			ConditionExpression:       aws.String("attribute_not_exists(session_id) OR lease_until <= :now"),
			ExpressionAttributeValues: map[string]types.AttributeValue{":now": numberValue(now.Unix())},
		})
		if err == nil {
			return func() { s.releaseLease(ctx, key, owner) }, nil
		}
		var failed *types.ConditionalCheckFailedException
		if !errors.As(err, &failed) {
			return nil, fmt.Errorf("conversation: failed to acquire session lease: %w", err)
		}
		if !s.now().Before(deadline) {
			return nil, ErrSessionBusy
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		s.sleep(leasePollInterval)
	}
}

func (s *DynamoSessionStore) releaseLease(ctx context.Context, key, owner string) {
	releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
	defer cancel()
	_, _ = s.api.DeleteItem(releaseCtx, &dynamodb.DeleteItemInput{
		TableName: aws.String(s.table),
		Key: map[string]types.AttributeValue{
			"session_id": &types.AttributeValueMemberS{Value: key},
		},
		ConditionExpression:       aws.String("#owner = :owner"),
		ExpressionAttributeNames:  map[string]string{"#owner": "owner"},
		ExpressionAttributeValues: map[string]types.AttributeValue{":owner": &types.AttributeValueMemberS{Value: owner}},
	})
}

func numberValue(n int64) types.AttributeValue {
	return &types.AttributeValueMemberN{Value: strconv.FormatInt(n, 10)}
}

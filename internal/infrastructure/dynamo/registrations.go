package dynamo

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/fern-folio/bookstore-api/internal/domain"
)

// PendingRepo stores unconfirmed signups.
// PK: email. GSI token_hash-index. expires_at is the table TTL attribute,
// but expiry is always checked explicitly since TTL deletion is lazy.
type PendingRepo struct {
	client      API
	tableName   string
	usersTable  string
	emailsTable string
}

func NewPendingRepo(client API, tableName, usersTable, emailsTable string) *PendingRepo {
	return &PendingRepo{client: client, tableName: tableName, usersTable: usersTable, emailsTable: emailsTable}
}

// Create stores p unless the email belongs to a user or to another
// registration that has not expired at now.
func (r *PendingRepo) Create(ctx context.Context, p *domain.PendingRegistration, now time.Time) error {
	item, err := attributevalue.MarshalMap(p)
	if err != nil {
		return fmt.Errorf("marshal pending registration: %w", err)
	}
	_, err = r.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: []types.TransactWriteItem{
			{ConditionCheck: &types.ConditionCheck{
				TableName:                aws.String(r.emailsTable),
				Key:                      strKey(fieldEmail, p.Email),
				ConditionExpression:      aws.String("attribute_not_exists(#e)"),
				ExpressionAttributeNames: map[string]string{"#e": fieldEmail},
			}},
			{Put: &types.Put{
				TableName:                aws.String(r.tableName),
				Item:                     item,
				ConditionExpression:      aws.String("attribute_not_exists(#e) OR #x <= :now"),
				ExpressionAttributeNames: map[string]string{"#e": fieldEmail, "#x": fieldExpiresAt},
				ExpressionAttributeValues: map[string]types.AttributeValue{
					":now": numVal(now.Unix()),
				},
			}},
		},
	})
	if idx, cancelled := cancelledAt(err); cancelled {
		if contains(idx, 0) {
			return fmt.Errorf("email already registered: %w", domain.ErrDuplicateRegistration)
		}
		return fmt.Errorf("verification already pending: %w", domain.ErrDuplicateRegistration)
	}
	return err
}

func (r *PendingRepo) GetByEmail(ctx context.Context, email string) (*domain.PendingRegistration, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(r.tableName),
		Key:            strKey(fieldEmail, email),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, err
	}
	if out.Item == nil {
		return nil, fmt.Errorf("pending registration %s: %w", email, domain.ErrNotFound)
	}
	var p domain.PendingRegistration
	if err := attributevalue.UnmarshalMap(out.Item, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// GetByTokenHash reads the GSI and then re-reads the base item consistently,
// so a token rotated or consumed moments ago is not returned.
func (r *PendingRepo) GetByTokenHash(ctx context.Context, tokenHash string) (*domain.PendingRegistration, error) {
	out, err := r.client.Query(ctx, &dynamodb.QueryInput{
		TableName:                 aws.String(r.tableName),
		IndexName:                 aws.String(indexTokenHash),
		KeyConditionExpression:    aws.String("#a = :v"),
		ExpressionAttributeNames:  map[string]string{"#a": fieldTokenHash},
		ExpressionAttributeValues: map[string]types.AttributeValue{":v": strVal(tokenHash)},
		Limit:                     aws.Int32(1),
	})
	if err != nil {
		return nil, err
	}
	notFound := fmt.Errorf("pending registration by token: %w", domain.ErrNotFound)
	if len(out.Items) == 0 {
		return nil, notFound
	}
	var hit domain.PendingRegistration
	if err := attributevalue.UnmarshalMap(out.Items[0], &hit); err != nil {
		return nil, err
	}
	p, err := r.GetByEmail(ctx, hit.Email)
	if err != nil {
		return nil, err
	}
	if p.TokenHash != tokenHash {
		return nil, notFound
	}
	return p, nil
}

func (r *PendingRepo) Delete(ctx context.Context, email, tokenHash string) error {
	_, err := r.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName:                 aws.String(r.tableName),
		Key:                       strKey(fieldEmail, email),
		ConditionExpression:       aws.String("#t = :h"),
		ExpressionAttributeNames:  map[string]string{"#t": fieldTokenHash},
		ExpressionAttributeValues: map[string]types.AttributeValue{":h": strVal(tokenHash)},
	})
	if isConditionFailed(err) {
		return fmt.Errorf("pending registration %s: %w", email, domain.ErrNotFound)
	}
	return err
}

func (r *PendingRepo) RotateToken(ctx context.Context, email, oldHash, newHash string) error {
	_, err := r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                aws.String(r.tableName),
		Key:                      strKey(fieldEmail, email),
		UpdateExpression:         aws.String("SET #t = :new"),
		ConditionExpression:      aws.String("#t = :old"),
		ExpressionAttributeNames: map[string]string{"#t": fieldTokenHash},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":new": strVal(newHash),
			":old": strVal(oldHash),
		},
	})
	if isConditionFailed(err) {
		return fmt.Errorf("pending registration %s: %w", email, domain.ErrNotFound)
	}
	return err
}

// Promote consumes the pending registration and creates the user atomically.
// Of two concurrent confirmations only one transaction can delete the
// pending item, so at most one user is created.
func (r *PendingRepo) Promote(ctx context.Context, p *domain.PendingRegistration, u *domain.User) error {
	userItem, err := attributevalue.MarshalMap(u)
	if err != nil {
		return fmt.Errorf("marshal user: %w", err)
	}
	guardItem, err := attributevalue.MarshalMap(emailGuard{Email: u.Email, UserID: u.UserID})
	if err != nil {
		return fmt.Errorf("marshal email guard: %w", err)
	}
	_, err = r.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: []types.TransactWriteItem{
			{Delete: &types.Delete{
				TableName:                 aws.String(r.tableName),
				Key:                       strKey(fieldEmail, p.Email),
				ConditionExpression:       aws.String("#t = :h"),
				ExpressionAttributeNames:  map[string]string{"#t": fieldTokenHash},
				ExpressionAttributeValues: map[string]types.AttributeValue{":h": strVal(p.TokenHash)},
			}},
			{Put: &types.Put{
				TableName:                aws.String(r.usersTable),
				Item:                     userItem,
				ConditionExpression:      aws.String("attribute_not_exists(#pk)"),
				ExpressionAttributeNames: map[string]string{"#pk": fieldUserID},
			}},
			{Put: &types.Put{
				TableName:                aws.String(r.emailsTable),
				Item:                     guardItem,
				ConditionExpression:      aws.String("attribute_not_exists(#e)"),
				ExpressionAttributeNames: map[string]string{"#e": fieldEmail},
			}},
		},
	})
	if idx, cancelled := cancelledAt(err); cancelled {
		if contains(idx, 2) && !contains(idx, 0) {
			return fmt.Errorf("email already registered: %w", domain.ErrDuplicateRegistration)
		}
		return fmt.Errorf("pending registration %s: %w", p.Email, domain.ErrNotFound)
	}
	return err
}

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

// UserRepo provides typed DynamoDB operations for the users table and its
// email guard table.
type UserRepo struct {
	client      API
	tableName   string
	emailsTable string
}

func NewUserRepo(client API, tableName, emailsTable string) *UserRepo {
	return &UserRepo{client: client, tableName: tableName, emailsTable: emailsTable}
}

func (r *UserRepo) Get(ctx context.Context, userID string) (*domain.User, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(r.tableName),
		Key:            strKey(fieldUserID, userID),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, err
	}
	if out.Item == nil {
		return nil, fmt.Errorf("user %s: %w", userID, domain.ErrNotFound)
	}
	var u domain.User
	if err := attributevalue.UnmarshalMap(out.Item, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

// GetByEmail resolves the email through the guard table, which is written in
// the same transaction as the user and so never lags behind it.
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(r.emailsTable),
		Key:            strKey(fieldEmail, email),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, err
	}
	if out.Item == nil {
		return nil, fmt.Errorf("user with email %s: %w", email, domain.ErrNotFound)
	}
	var guard emailGuard
	if err := attributevalue.UnmarshalMap(out.Item, &guard); err != nil {
		return nil, err
	}
	return r.Get(ctx, guard.UserID)
}

// QueryPage returns a page of users.
// cursor is a base64-encoded user_id used as ExclusiveStartKey.
// Returns the items, a next cursor (empty string when no more pages), and any error.
func (r *UserRepo) QueryPage(ctx context.Context, limit int32, cursor string) ([]domain.User, string, error) {
	input := &dynamodb.ScanInput{
		TableName: aws.String(r.tableName),
		Limit:     aws.Int32(limit),
	}
	if cursor != "" {
		userID, err := decodeCursor(cursor)
		if err != nil {
			return nil, "", fmt.Errorf("invalid cursor: %w", domain.ErrBadRequest)
		}
		input.ExclusiveStartKey = strKey(fieldUserID, userID)
	}
	out, err := r.client.Scan(ctx, input)
	if err != nil {
		return nil, "", err
	}
	users := []domain.User{}
	if err := attributevalue.UnmarshalListOfMaps(out.Items, &users); err != nil {
		return nil, "", err
	}
	nextCursor := ""
	if v, ok := out.LastEvaluatedKey[fieldUserID].(*types.AttributeValueMemberS); ok {
		nextCursor = encodeCursor(v.Value)
	}
	return users, nextCursor, nil
}

func (r *UserRepo) Update(ctx context.Context, userID string, c domain.UserChanges, now time.Time) error {
	updates := map[string]interface{}{fieldUpdatedAt: now.UTC()}
	if c.Name != nil {
		updates[fieldName] = *c.Name
	}
	if c.PasswordHash != nil {
		updates[fieldPassword] = *c.PasswordHash
	}
	if c.Role != nil {
		updates[fieldRole] = *c.Role
	}
	ue, err := buildUpdateExpr(updates)
	if err != nil {
		return err
	}
	ue.Names["#pk"] = fieldUserID
	_, err = r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(r.tableName),
		Key:                       strKey(fieldUserID, userID),
		UpdateExpression:          aws.String(ue.Expr),
		ConditionExpression:       aws.String("attribute_exists(#pk)"),
		ExpressionAttributeNames:  ue.Names,
		ExpressionAttributeValues: ue.Values,
	})
	if isConditionFailed(err) {
		return fmt.Errorf("user %s: %w", userID, domain.ErrNotFound)
	}
	return err
}

// Delete removes the user and releases the email in one transaction.
func (r *UserRepo) Delete(ctx context.Context, userID string) error {
	u, err := r.Get(ctx, userID)
	if err != nil {
		return err
	}
	_, err = r.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: []types.TransactWriteItem{
			{Delete: &types.Delete{
				TableName:                aws.String(r.tableName),
				Key:                      strKey(fieldUserID, userID),
				ConditionExpression:      aws.String("attribute_exists(#pk)"),
				ExpressionAttributeNames: map[string]string{"#pk": fieldUserID},
			}},
			{Delete: &types.Delete{
				TableName: aws.String(r.emailsTable),
				Key:       strKey(fieldEmail, u.Email),
			}},
		},
	})
	if _, cancelled := cancelledAt(err); cancelled {
		return fmt.Errorf("user %s: %w", userID, domain.ErrNotFound)
	}
	return err
}

// emailGuard is one row of the user_emails table.
type emailGuard struct {
	Email  string `dynamodbav:"email"`
	UserID string `dynamodbav:"user_id"`
}

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

type BookRepo struct {
	client    API
	tableName string
}

func NewBookRepo(client API, tableName string) *BookRepo {
	return &BookRepo{client: client, tableName: tableName}
}

func (r *BookRepo) Get(ctx context.Context, bookID string) (*domain.Book, error) {
	var b domain.Book
	if err := getItem(ctx, r.client, r.tableName, strKey(fieldBookID, bookID), &b); err != nil {
		return nil, fmt.Errorf("book %s: %w", bookID, err)
	}
	return &b, nil
}

// List scans the whole table; filtering and sorting happen in the service.
func (r *BookRepo) List(ctx context.Context) ([]domain.Book, error) {
	books := []domain.Book{}
	if err := scanAll(ctx, r.client, r.tableName, &books); err != nil {
		return nil, err
	}
	return books, nil
}

func (r *BookRepo) Create(ctx context.Context, b *domain.Book) error {
	err := putItem(ctx, r.client, r.tableName, b, "attribute_not_exists(#pk)", fieldBookID)
	if isConditionFailed(err) {
		return fmt.Errorf("book %s: %w", b.BookID, domain.ErrConflict)
	}
	return err
}

// Update sets only the fields present in req, so a concurrent order's stock
// decrement is never overwritten by an edit to other fields. Setting
// quantity recomputes instock in the same write.
func (r *BookRepo) Update(ctx context.Context, bookID string, req domain.UpdateBookRequest, now time.Time) (*domain.Book, error) {
	updates := map[string]interface{}{fieldUpdatedAt: now.UTC()}
	if req.Title != nil {
		updates[fieldTitle] = *req.Title
	}
	if req.Author != nil {
		updates[fieldAuthor] = *req.Author
	}
	if req.GenreID != nil {
		updates[fieldGenreID] = *req.GenreID
	}
	if req.Price != nil {
		updates[fieldPrice] = *req.Price
	}
	if req.Quantity != nil {
		updates[fieldQuantity] = *req.Quantity
		updates[fieldInStock] = *req.Quantity > 0
	}
	ue, err := buildUpdateExpr(updates)
	if err != nil {
		return nil, err
	}
	ue.Names["#pk"] = fieldBookID
	out, err := r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(r.tableName),
		Key:                       strKey(fieldBookID, bookID),
		UpdateExpression:          aws.String(ue.Expr),
		ConditionExpression:       aws.String("attribute_exists(#pk)"),
		ExpressionAttributeNames:  ue.Names,
		ExpressionAttributeValues: ue.Values,
		ReturnValues:              types.ReturnValueAllNew,
	})
	if isConditionFailed(err) {
		return nil, fmt.Errorf("book %s: %w", bookID, domain.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	var b domain.Book
	if err := attributevalue.UnmarshalMap(out.Attributes, &b); err != nil {
		return nil, fmt.Errorf("unmarshal book %s: %w", bookID, err)
	}
	return &b, nil
}

func (r *BookRepo) Delete(ctx context.Context, bookID string) error {
	err := deleteItem(ctx, r.client, r.tableName, fieldBookID, bookID)
	if isConditionFailed(err) {
		return fmt.Errorf("book %s: %w", bookID, domain.ErrNotFound)
	}
	return err
}

type GenreRepo struct {
	client    API
	tableName string
}

func NewGenreRepo(client API, tableName string) *GenreRepo {
	return &GenreRepo{client: client, tableName: tableName}
}

func (r *GenreRepo) Get(ctx context.Context, genreID string) (*domain.Genre, error) {
	var g domain.Genre
	if err := getItem(ctx, r.client, r.tableName, strKey(fieldGenreID, genreID), &g); err != nil {
		return nil, fmt.Errorf("genre %s: %w", genreID, err)
	}
	return &g, nil
}

func (r *GenreRepo) List(ctx context.Context) ([]domain.Genre, error) {
	genres := []domain.Genre{}
	if err := scanAll(ctx, r.client, r.tableName, &genres); err != nil {
		return nil, err
	}
	return genres, nil
}

func (r *GenreRepo) Create(ctx context.Context, g *domain.Genre) error {
	err := putItem(ctx, r.client, r.tableName, g, "attribute_not_exists(#pk)", fieldGenreID)
	if isConditionFailed(err) {
		return fmt.Errorf("genre %s: %w", g.GenreID, domain.ErrConflict)
	}
	return err
}

func (r *GenreRepo) Delete(ctx context.Context, genreID string) error {
	err := deleteItem(ctx, r.client, r.tableName, fieldGenreID, genreID)
	if isConditionFailed(err) {
		return fmt.Errorf("genre %s: %w", genreID, domain.ErrNotFound)
	}
	return err
}

// getItem reads one item consistently into out; a missing item is ErrNotFound.
func getItem(ctx context.Context, client API, table string, key map[string]types.AttributeValue, out any) error {
	res, err := client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(table),
		Key:            key,
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return err
	}
	if res.Item == nil {
		return domain.ErrNotFound
	}
	return attributevalue.UnmarshalMap(res.Item, out)
}

// putItem writes v guarded by cond, in which #pk names pkField.
func putItem(ctx context.Context, client API, table string, v any, cond, pkField string) error {
	item, err := attributevalue.MarshalMap(v)
	if err != nil {
		return fmt.Errorf("marshal %s item: %w", table, err)
	}
	_, err = client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:                aws.String(table),
		Item:                     item,
		ConditionExpression:      aws.String(cond),
		ExpressionAttributeNames: map[string]string{"#pk": pkField},
	})
	return err
}

func deleteItem(ctx context.Context, client API, table, pkField, id string) error {
	_, err := client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName:                aws.String(table),
		Key:                      strKey(pkField, id),
		ConditionExpression:      aws.String("attribute_exists(#pk)"),
		ExpressionAttributeNames: map[string]string{"#pk": pkField},
	})
	return err
}

// scanAll follows LastEvaluatedKey until the table is exhausted.
func scanAll[T any](ctx context.Context, client API, table string, out *[]T) error {
	p := dynamodb.NewScanPaginator(client, &dynamodb.ScanInput{TableName: aws.String(table)})
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return err
		}
		var items []T
		if err := attributevalue.UnmarshalListOfMaps(page.Items, &items); err != nil {
			return err
		}
		*out = append(*out, items...)
	}
	return nil
}

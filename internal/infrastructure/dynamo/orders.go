package dynamo

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/fern-folio/bookstore-api/internal/domain"
)

type CartRepo struct {
	client    API
	tableName string
}

func NewCartRepo(client API, tableName string) *CartRepo {
	return &CartRepo{client: client, tableName: tableName}
}

func (r *CartRepo) Get(ctx context.Context, cartID string) (*domain.Cart, error) {
	var c domain.Cart
	if err := getItem(ctx, r.client, r.tableName, strKey(fieldCartID, cartID), &c); err != nil {
		return nil, fmt.Errorf("cart %s: %w", cartID, err)
	}
	return &c, nil
}

// GetByUser returns the user's active cart.
func (r *CartRepo) GetByUser(ctx context.Context, userID string) (*domain.Cart, error) {
	var carts []domain.Cart
	err := queryAll(ctx, r.client, &dynamodb.QueryInput{
		TableName:              aws.String(r.tableName),
		IndexName:              aws.String(indexUserID),
		KeyConditionExpression: aws.String("#u = :u"),
		FilterExpression:       aws.String("#s = :s"),
		ExpressionAttributeNames: map[string]string{
			"#u": fieldUserID,
			"#s": fieldStatus,
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":u": strVal(userID),
			":s": strVal(domain.CartStatusActive),
		},
	}, &carts)
	if err != nil {
		return nil, err
	}
	if len(carts) == 0 {
		return nil, fmt.Errorf("cart for user %s: %w", userID, domain.ErrNotFound)
	}
	return &carts[0], nil
}

func (r *CartRepo) Put(ctx context.Context, c *domain.Cart) error {
	item, err := attributevalue.MarshalMap(c)
	if err != nil {
		return fmt.Errorf("marshal cart: %w", err)
	}
	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(r.tableName),
		Item:      item,
	})
	return err
}

func (r *CartRepo) Delete(ctx context.Context, cartID string) error {
	_, err := r.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(r.tableName),
		Key:       strKey(fieldCartID, cartID),
	})
	return err
}

// maxPlaceAttempts bounds the optimistic retries of Place when concurrent
// orders keep moving the stock it read.
const maxPlaceAttempts = 5

type OrderRepo struct {
	client     API
	tableName  string
	booksTable string
}

func NewOrderRepo(client API, tableName, booksTable string) *OrderRepo {
	return &OrderRepo{client: client, tableName: tableName, booksTable: booksTable}
}

// Place applies every decrement and stores o in a single transaction, or
// changes nothing. Each decrement is conditioned on the quantity it read, so a
// concurrent order invalidates the attempt and stock is re-read.
func (r *OrderRepo) Place(ctx context.Context, o *domain.Order, decs []domain.StockDecrement) error {
	orderItem, err := attributevalue.MarshalMap(o)
	if err != nil {
		return fmt.Errorf("marshal order: %w", err)
	}
	for attempt := 0; attempt < maxPlaceAttempts; attempt++ {
		items := make([]types.TransactWriteItem, 0, len(decs)+1)
		for _, d := range decs {
			var b domain.Book
			if err := getItem(ctx, r.client, r.booksTable, strKey(fieldBookID, d.BookID), &b); err != nil {
				return fmt.Errorf("book %s: %w", d.BookID, err)
			}
			if b.Quantity < d.Quantity {
				return fmt.Errorf("book %s has %d left: %w", d.BookID, b.Quantity, domain.ErrInsufficientStock)
			}
			left := b.Quantity - d.Quantity
			items = append(items, types.TransactWriteItem{Update: &types.Update{
				TableName:           aws.String(r.booksTable),
				Key:                 strKey(fieldBookID, d.BookID),
				UpdateExpression:    aws.String("SET #q = :left, #s = :instock, #u = :now"),
				ConditionExpression: aws.String("#q = :seen"),
				ExpressionAttributeNames: map[string]string{
					"#q": fieldQuantity,
					"#s": fieldInStock,
					"#u": fieldUpdatedAt,
				},
				ExpressionAttributeValues: map[string]types.AttributeValue{
					":left":    numVal(int64(left)),
					":seen":    numVal(int64(b.Quantity)),
					":instock": &types.AttributeValueMemberBOOL{Value: left > 0},
					":now":     strVal(o.CreatedAt.UTC().Format(time.RFC3339Nano)),
				},
			}})
		}
		items = append(items, types.TransactWriteItem{Put: &types.Put{
			TableName:                aws.String(r.tableName),
			Item:                     orderItem,
			ConditionExpression:      aws.String("attribute_not_exists(#pk)"),
			ExpressionAttributeNames: map[string]string{"#pk": fieldOrderID},
		}})

		_, err := r.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{TransactItems: items})
		if err == nil {
			return nil
		}
		if _, cancelled := cancelledAt(err); !cancelled {
			return err
		}
	}
	return fmt.Errorf("stock changed during checkout: %w", domain.ErrConflict)
}

func (r *OrderRepo) Get(ctx context.Context, orderID string) (*domain.Order, error) {
	var o domain.Order
	if err := getItem(ctx, r.client, r.tableName, strKey(fieldOrderID, orderID), &o); err != nil {
		return nil, fmt.Errorf("order %s: %w", orderID, err)
	}
	return &o, nil
}

func (r *OrderRepo) ListByUser(ctx context.Context, userID string) ([]domain.Order, error) {
	var orders []domain.Order
	err := queryAll(ctx, r.client, &dynamodb.QueryInput{
		TableName:                 aws.String(r.tableName),
		IndexName:                 aws.String(indexUserID),
		KeyConditionExpression:    aws.String("#u = :u"),
		ExpressionAttributeNames:  map[string]string{"#u": fieldUserID},
		ExpressionAttributeValues: map[string]types.AttributeValue{":u": strVal(userID)},
	}, &orders)
	if err != nil {
		return nil, err
	}
	sortOrders(orders)
	return orders, nil
}

func (r *OrderRepo) List(ctx context.Context) ([]domain.Order, error) {
	var orders []domain.Order
	if err := scanAll(ctx, r.client, r.tableName, &orders); err != nil {
		return nil, err
	}
	sortOrders(orders)
	return orders, nil
}

func (r *OrderRepo) UpdateStatus(ctx context.Context, orderID, status string, now time.Time) error {
	ue, err := buildUpdateExpr(map[string]interface{}{
		fieldStatus:    status,
		fieldUpdatedAt: now.UTC(),
	})
	if err != nil {
		return err
	}
	ue.Names["#pk"] = fieldOrderID
	_, err = r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(r.tableName),
		Key:                       strKey(fieldOrderID, orderID),
		UpdateExpression:          aws.String(ue.Expr),
		ConditionExpression:       aws.String("attribute_exists(#pk)"),
		ExpressionAttributeNames:  ue.Names,
		ExpressionAttributeValues: ue.Values,
	})
	if isConditionFailed(err) {
		return fmt.Errorf("order %s: %w", orderID, domain.ErrNotFound)
	}
	return err
}

func (r *OrderRepo) Delete(ctx context.Context, orderID string) error {
	err := deleteItem(ctx, r.client, r.tableName, fieldOrderID, orderID)
	if isConditionFailed(err) {
		return fmt.Errorf("order %s: %w", orderID, domain.ErrNotFound)
	}
	return err
}

// Order IDs are ULIDs, so ID order is creation order.
func sortOrders(orders []domain.Order) {
	sort.Slice(orders, func(i, j int) bool { return orders[i].OrderID < orders[j].OrderID })
}

func queryAll[T any](ctx context.Context, client API, in *dynamodb.QueryInput, out *[]T) error {
	p := dynamodb.NewQueryPaginator(client, in)
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

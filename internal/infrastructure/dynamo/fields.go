package dynamo

// DynamoDB attribute names used in keys, conditions and update expressions.
const (
	fieldUserID    = "user_id"
	fieldEmail     = "email"
	fieldName      = "name"
	fieldRole      = "role"
	fieldPassword  = "password_hash"
	fieldUpdatedAt = "updated_at"
	fieldTokenHash = "token_hash"
	fieldExpiresAt = "expires_at"
	fieldBookID    = "book_id"
	fieldTitle     = "title"
	fieldAuthor    = "author"
	fieldPrice     = "price"
	fieldGenreID   = "genre_id"
	fieldQuantity  = "quantity"
	fieldInStock   = "instock"
	fieldCartID    = "cart_id"
	fieldOrderID   = "order_id"
	fieldStatus    = "status"
)

const (
	indexUserID    = "user_id-index"
	indexTokenHash = "token_hash-index"
)

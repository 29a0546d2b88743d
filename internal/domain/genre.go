package domain

type Genre struct {
	GenreID string `json:"id" dynamodbav:"genre_id"`
	Name    string `json:"name" dynamodbav:"name"`
}

type GenreInput struct {
	Name string `json:"name" validate:"required,max=255"`
}

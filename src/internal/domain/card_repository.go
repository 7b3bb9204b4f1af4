package domain

import "context"

type CardRepository interface {
	FindByID(ctx context.Context, id int64) (Card, error)
	Create(ctx context.Context, card Card) (Card, error)
	Save(ctx context.Context, card Card) (Card, error)
}

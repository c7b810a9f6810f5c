package directory

import "context"

type StoreAPI interface {
	GetUser(ctx context.Context, userID string) (User, error)
	ListActiveUsers(ctx context.Context) ([]User, error)
	UpsertUser(ctx context.Context, user User) error
}

// Package events публикует доменные события auth-сервиса в брокер сообщений.
package events

//go:generate mockgen -source=events.go -destination=../../mocks/publisher.go -package=mocks

import (
	"context"
	"time"
)

// RoutingKeyUserCreated: ключ маршрутизации события о регистрации пользователя.
const RoutingKeyUserCreated = "Auth.UserCreatedEvent"

// UserCreated: событие регистрации нового пользователя.
// Потребители (Customers/Store) заводят по нему свои проекции.
type UserCreated struct {
	UserID      int64     `json:"user_id"`
	Username    string    `json:"username"`
	Email       string    `json:"email,omitempty"`
	DisplayName string    `json:"display_name,omitempty"`
	Role        string    `json:"role"`
	TenantIDs   []int64   `json:"tenant_ids,omitempty"`
	OccurredAt  time.Time `json:"occurred_at"`
}

// Publisher публикует событие с указанным ключом маршрутизации.
type Publisher interface {
	Publish(ctx context.Context, routingKey string, event any) error
	Close() error
}

// NopPublisher отбрасывает события; используется, когда брокер не сконфигурирован.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, string, any) error { return nil }
func (NopPublisher) Close() error                               { return nil }

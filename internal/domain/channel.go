package domain

import "context"

// Channel is a transport that feeds the bus (Telegram today).
type Channel interface {
	Name() string
	Start(ctx context.Context, bus MessageBus) error
	Stop() error
}

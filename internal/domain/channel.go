package domain

import "context"

// Channel is the interface for user-facing I/O (Web, Telegram, CLI).
type Channel interface {
	Name() string
	Start(ctx context.Context) error
	Stop() error
}

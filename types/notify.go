package types

import "context"

type Notifier interface {
	Enabled() bool
	NotifyInquiry(ctx context.Context, inquiry *Inquiry) error
}

package notify

import (
	"context"

	"go.uber.org/multierr"

	"github.com/saiset-co/catalog-service/types"
)

// Chain fans an inquiry out to every enabled notifier. One channel failing
// does not stop the others.
type Chain []types.Notifier

func NewChain(notifiers ...types.Notifier) Chain {
	chain := make(Chain, 0, len(notifiers))
	for _, n := range notifiers {
		if n != nil {
			chain = append(chain, n)
		}
	}
	return chain
}

func (c Chain) Enabled() bool {
	for _, n := range c {
		if n.Enabled() {
			return true
		}
	}
	return false
}

func (c Chain) NotifyInquiry(ctx context.Context, inquiry *types.Inquiry) error {
	if !c.Enabled() {
		return types.ErrNotifierDisabled
	}

	var err error
	for _, n := range c {
		if n.Enabled() {
			err = multierr.Append(err, n.NotifyInquiry(ctx, inquiry))
		}
	}
	return err
}

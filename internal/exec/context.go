// Copyright (c) The Codify Authors
// SPDX-License-Identifier: MPL-2.0

package exec

import "context"

type channelKey struct{}

// WithChannel returns a context carrying the given Channel as the "current
// execution channel" for the scope of one plan operation, threaded
// explicitly rather than kept in a hidden per-goroutine global.
func WithChannel(ctx context.Context, ch *Channel) context.Context {
	return context.WithValue(ctx, channelKey{}, ch)
}

// FromContext retrieves the current execution channel bound by WithChannel,
// if any.
func FromContext(ctx context.Context) (*Channel, bool) {
	ch, ok := ctx.Value(channelKey{}).(*Channel)
	return ch, ok
}

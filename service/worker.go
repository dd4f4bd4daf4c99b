/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package service

import "context"

// Worker performs some long-running work until the context is canceled.
type Worker interface {
	Run(ctx context.Context) error
}

// WorkerFunc is an adapter to allow the use of ordinary functions as Worker.
type WorkerFunc func(ctx context.Context) error

// Run is a part of Worker interface.
func (f WorkerFunc) Run(ctx context.Context) error {
	return f(ctx)
}

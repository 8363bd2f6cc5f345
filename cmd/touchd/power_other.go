//go:build !linux

package main

import (
	"context"

	"touchcode-go/services/touch"
)

// watchPower has no host signal source here; power goes over the bus only.
func watchPower(ctx context.Context, _ []*touch.Service) { <-ctx.Done() }

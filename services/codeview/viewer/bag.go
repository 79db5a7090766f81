// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package viewer manages the lifecycle of code viewers registered with
// the extension host: grouped teardown of their resources and the
// registration handshake itself.
package viewer

import "sync"

// SubscriptionBag collects teardown functions for resources that share
// a lifetime, so they can be released as one unit.
//
// Release runs every collected function exactly once. Adding to a bag
// that has already been released runs the function immediately, which
// closes the window where a resource acquired during teardown would
// otherwise leak.
//
// Thread Safety: safe for concurrent use.
type SubscriptionBag struct {
	mu       sync.Mutex
	released bool
	teardown []func()
}

// NewSubscriptionBag creates an empty, unreleased bag.
func NewSubscriptionBag() *SubscriptionBag {
	return &SubscriptionBag{}
}

// Add registers a teardown function. If the bag is already released,
// fn runs synchronously before Add returns.
func (b *SubscriptionBag) Add(fn func()) {
	if fn == nil {
		return
	}
	b.mu.Lock()
	if b.released {
		b.mu.Unlock()
		fn()
		return
	}
	b.teardown = append(b.teardown, fn)
	b.mu.Unlock()
}

// Release runs all collected teardown functions in registration order.
// Subsequent calls are no-ops.
func (b *SubscriptionBag) Release() {
	b.mu.Lock()
	if b.released {
		b.mu.Unlock()
		return
	}
	b.released = true
	fns := b.teardown
	b.teardown = nil
	b.mu.Unlock()

	for _, fn := range fns {
		fn()
	}
}

// Released reports whether Release has been called.
func (b *SubscriptionBag) Released() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.released
}

/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package testutil

import "fmt"

// mockT records failures instead of stopping the calling test.
type mockT struct {
	failed bool
	msg    string
}

func (t *mockT) FailNow() {
	t.failed = true
}

func (t *mockT) Errorf(format string, args ...interface{}) {
	t.failed = true
	t.msg = fmt.Sprintf(format, args...)
}

package notifier

import "testing"

func TestNoopNotifierDiscardsMessages(t *testing.T) {
	var n NoopNotifier
	n.Notify("should not panic")
}

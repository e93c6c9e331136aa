package scan

import (
	"github.com/homelib/homelib-client/pkg/books"
	"github.com/homelib/homelib-client/pkg/notify"
)

// NotifierCallbacks builds Callbacks that surface session progress as
// transient notifications: the detection acknowledgment, the resolved
// title, and recoverable errors. Merge the result with UI-specific
// callbacks as needed.
func NotifierCallbacks(n notify.Notifier) Callbacks {
	return Callbacks{
		OnDetected: func(code string) {
			notify.Info(n, "Barcode detected: "+code)
		},
		OnResolved: func(meta *books.Metadata) {
			notify.Success(n, "Found: "+meta.Title)
		},
		OnError: func(err error) {
			notify.Error(n, err.Error())
		},
	}
}

package wizard

import "time"

// Level classifies a notification.
type Level string

const (
	LevelSuccess Level = "success"
	LevelError   Level = "error"
)

// Notification is a toast shown to the user.
type Notification struct {
	Level   Level  `json:"level"`
	Title   string `json:"title"`
	Message string `json:"message"`
}

// Notifier receives user-facing notifications.
type Notifier interface {
	Notify(n Notification)
}

// Navigator is told where to send the user once a submission is stored.
// after is the delay before the navigation should happen.
type Navigator interface {
	Navigate(url string, after time.Duration)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(Notification)

func (f NotifierFunc) Notify(n Notification) { f(n) }

// NavigatorFunc adapts a function to Navigator.
type NavigatorFunc func(url string, after time.Duration)

func (f NavigatorFunc) Navigate(url string, after time.Duration) { f(url, after) }

type discard struct{}

func (discard) Notify(Notification)            {}
func (discard) Navigate(string, time.Duration) {}

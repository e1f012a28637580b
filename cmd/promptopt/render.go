package main

import (
	"io"

	"github.com/fatih/color"

	"github.com/target/promptopt-client/internal/domain/notification"
)

var notificationStyles = map[notification.Type]*color.Color{
	notification.TypeSuccess: color.New(color.FgGreen, color.Bold),
	notification.TypeError:   color.New(color.FgRed, color.Bold),
	notification.TypeWarning: color.New(color.FgYellow, color.Bold),
	notification.TypeInfo:    color.New(color.FgCyan, color.Bold),
}

// renderNotifications prints the visible notifications in insertion order.
func renderNotifications(w io.Writer, list []notification.Notification) error {
	for _, n := range list {
		style, ok := notificationStyles[n.Type]
		if !ok {
			style = notificationStyles[notification.TypeInfo]
		}
		if _, err := style.Fprintf(w, "[%s] %s", n.Type, n.Title); err != nil {
			return err
		}
		if n.Message != "" {
			if err := writef(w, ": %s", n.Message); err != nil {
				return err
			}
		}
		if err := writeln(w); err != nil {
			return err
		}
	}
	return nil
}

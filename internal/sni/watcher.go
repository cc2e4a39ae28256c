package sni

import (
	"fmt"

	"github.com/godbus/dbus/v5"
)

const (
	watcherName      = "org.kde.StatusNotifierWatcher"
	watcherPath      = dbus.ObjectPath("/StatusNotifierWatcher")
	watcherInterface = "org.kde.StatusNotifierWatcher"
)

// Register announces service to the StatusNotifierWatcher.
func Register(conn *dbus.Conn, service string) error {
	if conn == nil {
		return fmt.Errorf("dbus connection is nil")
	}
	obj := conn.Object(watcherName, watcherPath)
	call := obj.Call(watcherInterface+".RegisterStatusNotifierItem", 0, service)
	if call.Err != nil {
		return fmt.Errorf("register with watcher: %w", call.Err)
	}
	return nil
}

// WatcherAvailable reports whether a StatusNotifierWatcher owns its name on
// the bus.
func WatcherAvailable(conn *dbus.Conn) bool {
	var owner string
	err := conn.BusObject().Call("org.freedesktop.DBus.GetNameOwner", 0, watcherName).Store(&owner)
	return err == nil && owner != ""
}

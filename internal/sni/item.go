package sni

import (
	"fmt"
	"sync"

	"github.com/godbus/dbus/v5"
	"github.com/godbus/dbus/v5/introspect"
	"github.com/godbus/dbus/v5/prop"
)

const (
	itemInterface = "org.kde.StatusNotifierItem"
	itemPath      = dbus.ObjectPath("/StatusNotifierItem")
	noMenuPath    = dbus.ObjectPath("/NO_DBUSMENU")
)

type Pixmap struct {
	Width  int32
	Height int32
	Data   []byte
}

type Properties struct {
	Category   string
	ID         string
	Title      string
	Status     string
	WindowID   uint32
	IconPixmap []Pixmap
	ItemIsMenu bool
}

type ActionHandler interface {
	Activate(x, y int32)
	SecondaryActivate(x, y int32)
	ContextMenu(x, y int32)
	Scroll(delta int32, orientation string)
}

// Item exports one StatusNotifierItem on its own bus name and its own
// connection. D-Bus calls its methods from the connection's goroutines.
type Item struct {
	conn    *dbus.Conn
	service string
	props   *prop.Properties

	mu      sync.RWMutex
	handler ActionHandler
}

// Dial opens a private session bus connection and exports an item on it.
// Objects are routed by path alone, so items sharing a connection would
// shadow each other at itemPath.
func Dial(service string, props Properties, handler ActionHandler) (*Item, error) {
	conn, err := dbus.ConnectSessionBus()
	if err != nil {
		return nil, fmt.Errorf("connect session bus: %w", err)
	}
	item, err := NewItem(conn, service, props, handler)
	if err != nil {
		conn.Close()
		return nil, err
	}
	return item, nil
}

// NewItem exports an item on conn and registers it with the watcher. The
// item takes ownership of conn, which must not carry another item.
func NewItem(conn *dbus.Conn, service string, props Properties, handler ActionHandler) (*Item, error) {
	item, err := newItem(conn, service, props, handler)
	if err != nil {
		return nil, err
	}
	if err := Register(conn, service); err != nil {
		item.unexport()
		return nil, err
	}
	return item, nil
}

func newItem(conn *dbus.Conn, service string, props Properties, handler ActionHandler) (*Item, error) {
	if conn == nil {
		return nil, fmt.Errorf("dbus connection is nil")
	}
	reply, err := conn.RequestName(service, dbus.NameFlagDoNotQueue)
	if err != nil {
		return nil, fmt.Errorf("request name: %w", err)
	}
	if reply != dbus.RequestNameReplyPrimaryOwner {
		return nil, fmt.Errorf("dbus name not available: %s", service)
	}

	item := &Item{
		conn:    conn,
		service: service,
		handler: handler,
	}
	if err := item.export(props); err != nil {
		item.unexport()
		return nil, err
	}
	return item, nil
}

func (i *Item) export(p Properties) error {
	if err := i.conn.Export(i, itemPath, itemInterface); err != nil {
		return fmt.Errorf("export %s: %w", itemInterface, err)
	}

	props, err := prop.Export(i.conn, itemPath, propertyMap(p))
	if err != nil {
		return fmt.Errorf("export properties: %w", err)
	}
	i.props = props

	node := &introspect.Node{
		Name: string(itemPath),
		Interfaces: []introspect.Interface{
			introspect.IntrospectData,
			prop.IntrospectData,
			{
				Name:       itemInterface,
				Methods:    itemMethods,
				Signals:    itemSignals,
				Properties: props.Introspection(itemInterface),
			},
		},
	}
	if err := i.conn.Export(introspect.NewIntrospectable(node), itemPath, "org.freedesktop.DBus.Introspectable"); err != nil {
		return fmt.Errorf("export introspection: %w", err)
	}
	return nil
}

func propertyMap(p Properties) prop.Map {
	ro := func(v any, emit prop.EmitType) *prop.Prop {
		return &prop.Prop{Value: v, Writable: false, Emit: emit}
	}
	pixmaps := p.IconPixmap
	if pixmaps == nil {
		pixmaps = []Pixmap{}
	}
	return prop.Map{
		itemInterface: {
			"Category":   ro(p.Category, prop.EmitFalse),
			"Id":         ro(p.ID, prop.EmitFalse),
			"Title":      ro(p.Title, prop.EmitTrue),
			"Status":     ro(p.Status, prop.EmitTrue),
			"WindowId":   ro(p.WindowID, prop.EmitFalse),
			"IconName":   ro("", prop.EmitFalse),
			"IconPixmap": ro(pixmaps, prop.EmitTrue),
			"ItemIsMenu": ro(p.ItemIsMenu, prop.EmitFalse),
			"Menu":       ro(noMenuPath, prop.EmitFalse),
		},
	}
}

// Close withdraws the item and closes its connection.
func (i *Item) Close() {
	if i.conn == nil {
		return
	}
	i.unexport()
	i.conn.Close()
}

func (i *Item) unexport() {
	i.conn.Export(nil, itemPath, itemInterface)
	i.conn.Export(nil, itemPath, "org.freedesktop.DBus.Properties")
	i.conn.Export(nil, itemPath, "org.freedesktop.DBus.Introspectable")
	i.conn.ReleaseName(i.service)
}

func (i *Item) SetHandler(handler ActionHandler) {
	i.mu.Lock()
	i.handler = handler
	i.mu.Unlock()
}

func (i *Item) UpdateIcon(pixmaps []Pixmap) {
	i.props.SetMust(itemInterface, "IconPixmap", pixmaps)
	i.conn.Emit(itemPath, itemInterface+".NewIcon")
}

func (i *Item) UpdateTitle(title string) {
	i.props.SetMust(itemInterface, "Title", title)
	i.conn.Emit(itemPath, itemInterface+".NewTitle")
}

func (i *Item) currentHandler() ActionHandler {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.handler
}

func (i *Item) Activate(x, y int32) *dbus.Error {
	if h := i.currentHandler(); h != nil {
		h.Activate(x, y)
	}
	return nil
}

func (i *Item) SecondaryActivate(x, y int32) *dbus.Error {
	if h := i.currentHandler(); h != nil {
		h.SecondaryActivate(x, y)
	}
	return nil
}

func (i *Item) ContextMenu(x, y int32) *dbus.Error {
	if h := i.currentHandler(); h != nil {
		h.ContextMenu(x, y)
	}
	return nil
}

func (i *Item) Scroll(delta int32, orientation string) *dbus.Error {
	if h := i.currentHandler(); h != nil {
		h.Scroll(delta, orientation)
	}
	return nil
}

var itemMethods = []introspect.Method{
	{Name: "Activate", Args: []introspect.Arg{{Name: "x", Type: "i", Direction: "in"}, {Name: "y", Type: "i", Direction: "in"}}},
	{Name: "SecondaryActivate", Args: []introspect.Arg{{Name: "x", Type: "i", Direction: "in"}, {Name: "y", Type: "i", Direction: "in"}}},
	{Name: "ContextMenu", Args: []introspect.Arg{{Name: "x", Type: "i", Direction: "in"}, {Name: "y", Type: "i", Direction: "in"}}},
	{Name: "Scroll", Args: []introspect.Arg{{Name: "delta", Type: "i", Direction: "in"}, {Name: "orientation", Type: "s", Direction: "in"}}},
}

var itemSignals = []introspect.Signal{
	{Name: "NewIcon"},
	{Name: "NewTitle"},
	{Name: "NewStatus", Args: []introspect.Arg{{Name: "status", Type: "s"}}},
}

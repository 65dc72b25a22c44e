// Package event defines the application's closed set of events and the bus
// that fans them out to subscribers.
package event

import (
	"github.com/dukerupert/shelflife/internal/model"
	"github.com/dukerupert/shelflife/internal/record"
)

// Event is implemented only by the types in this package. Consumers switch
// on the concrete type; Describe shows the exhaustive form.
type Event interface {
	isEvent()
}

// Operation kinds. Mutating kinds double as keys in a repository's in-flight table.
const (
	OpFetchAll = "fetch_all"
	OpFetch    = "fetch"
	OpAdd      = "add"
	OpUpdate   = "update"
	OpMove     = "move"
	OpRemove   = "remove"
	OpApply    = "apply"
	OpTouch    = "touch"
)

// Op identifies the repository call an event concludes.
type Op struct {
	Repository string `json:"repository"`
	Kind       string `json:"kind"`
}

func (o Op) String() string {
	return o.Repository + "." + o.Kind
}

type ItemsFetched struct {
	// ListID is empty when the fetch was not scoped to a list.
	ListID model.ListID
	Items  []model.Item
}

type ItemFetched struct{ Item model.Item }
type ItemAdded struct{ Item model.Item }
type ItemUpdated struct{ Item model.Item }

// ItemMoved is published instead of ItemUpdated when an item changed lists.
type ItemMoved struct {
	Item model.Item
	From model.ListID
	To   model.ListID
}

type ItemsRemoved struct{ Items []model.Item }

type ListsFetched struct{ Lists []model.List }
type ListFetched struct{ List model.List }
type ListAdded struct{ List model.List }
type ListUpdated struct{ List model.List }
type ListsRemoved struct{ Lists []model.List }

type PhotosFetched struct {
	ItemID model.ItemID
	Photos []model.Photo
}

type PhotosChanged struct {
	ItemID  model.ItemID
	Saved   []model.Photo
	Deleted []model.PhotoID
}

type PhotosRemoved struct{ Photos []model.Photo }

// NoResult concludes an operation whose preconditions were not met, such as
// updating an entity that no longer exists. It is not an error.
type NoResult struct{ Op Op }

// Failed concludes an operation the remote store rejected.
type Failed struct {
	Op      Op
	Message string
}

// Category and Action describe a remotely originated change.
type (
	Category string
	Action   string
)

const (
	CategoryItem  Category = "item"
	CategoryList  Category = "list"
	CategoryPhoto Category = "photo"

	ActionCreated Action = "created"
	ActionUpdated Action = "updated"
	ActionDeleted Action = "deleted"
)

// RemoteChanged reports a change made by another client.
type RemoteChanged struct {
	Category Category
	Action   Action
	Key      record.Key
	Parent   record.Key
}

func (ItemsFetched) isEvent()  {}
func (ItemFetched) isEvent()   {}
func (ItemAdded) isEvent()     {}
func (ItemUpdated) isEvent()   {}
func (ItemMoved) isEvent()     {}
func (ItemsRemoved) isEvent()  {}
func (ListsFetched) isEvent()  {}
func (ListFetched) isEvent()   {}
func (ListAdded) isEvent()     {}
func (ListUpdated) isEvent()   {}
func (ListsRemoved) isEvent()  {}
func (PhotosFetched) isEvent() {}
func (PhotosChanged) isEvent() {}
func (PhotosRemoved) isEvent() {}
func (NoResult) isEvent()      {}
func (Failed) isEvent()        {}
func (RemoteChanged) isEvent() {}

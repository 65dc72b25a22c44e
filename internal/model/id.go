package model

import "github.com/google/uuid"

type (
	ItemID  string
	ListID  string
	PhotoID string
)

func NewItemID() ItemID   { return ItemID(uuid.NewString()) }
func NewListID() ListID   { return ListID(uuid.NewString()) }
func NewPhotoID() PhotoID { return PhotoID(uuid.NewString()) }

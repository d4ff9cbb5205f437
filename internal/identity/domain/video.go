package domain

import (
	"time"

	"github.com/aussiebroadwan/streamtab/pkg/idx"
)

// Video is the slice of the content catalog the views need.
type Video struct {
	ID           idx.ID
	OwnerID      idx.ID
	Title        string
	Description  string
	VideoURL     string
	ThumbnailURL string
	Duration     float64 // seconds
	Views        int64
	IsPublished  bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

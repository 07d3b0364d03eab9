package models

import "time"

// Announcement is a single feed item in normalized form.
type Announcement struct {
	GUID          string // stable feed identifier
	Title         string
	Link          string
	Description   string // Discord markdown, converted from the feed's HTML body
	Icon          string // disruption class reported by the feed (HIM1, HIM2, ...)
	ValidityBegin time.Time
	ValidityEnd   time.Time
	Published     time.Time // pubDate; a later value marks a revised announcement
}

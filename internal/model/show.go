package model

import "time"

// Show represents a scheduled screening in a theater.  StartsAt is stored in
// UTC and converted to the display zone only when rendered.
//
// Fields:
//  ID              – primary key identifier.
//  TheaterID       – theater where the show is screened.
//  Title           – movie title.
//  Description     – optional synopsis.
//  StartsAt        – when the show begins.
//  DurationMinutes – running time.
//  PriceCents      – ticket price in minor currency units.
//  ImageURL        – optional poster location.
type Show struct {
	ID              uint64    // shows.id
	TheaterID       uint64    // shows.theater_id
	Title           string    // shows.title
	Description     string    // shows.description
	StartsAt        time.Time // shows.starts_at
	DurationMinutes uint32    // shows.duration_minutes
	PriceCents      int64     // shows.price_cents
	ImageURL        string    // shows.image_url
	CreatedAt       time.Time // shows.created_at
	UpdatedAt       time.Time // shows.updated_at
}

package models

import "time"

// Meal is the persisted content record. The pipeline attaches ImgURLs and
// Timestamp on commit; everything else is set once at submission time.
type Meal struct {
	ID           string
	Type         string
	Name         string
	Description  string
	Calories     int
	HealthRating int
	Tags         []string
	ImgURLs      []string
	Likes        int
	LikedBy      []string
	OwnerID      string
	Timestamp    time.Time
}

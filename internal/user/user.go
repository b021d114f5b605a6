package user

import "time"

// User is a storefront customer. Orders reference users by ID; customer
// management itself lives outside this service.
type User struct {
	ID        string    `json:"id" bson:"_id"`
	Email     string    `json:"email" bson:"email"`
	CreatedAt time.Time `json:"createdAt" bson:"createdAt"`
}

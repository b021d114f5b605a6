package admin

import "time"

type Role string

const (
	RoleSuperAdmin Role = "superadmin"
	RoleAdmin      Role = "admin"
	RoleMerchant   Role = "merchant"
)

// NotificationRoles are the roles that receive admin push notifications.
var NotificationRoles = []Role{RoleAdmin, RoleSuperAdmin}

// User is a staff account. Account management and sign-in happen outside
// this service; it only reads who should be notified.
type User struct {
	ID        string    `json:"id" bson:"_id"`
	Name      string    `json:"name" bson:"name"`
	Email     string    `json:"email" bson:"email"`
	Role      Role      `json:"role" bson:"role"`
	IsActive  bool      `json:"isActive" bson:"isActive"`
	CreatedAt time.Time `json:"createdAt" bson:"createdAt"`
}

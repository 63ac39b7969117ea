package models

// User identity is owned by the auth subsystem; the messaging core only
// ever reads these rows to resolve display names and avatars.
type User struct {
	ID         int    `db:"user_id" json:"id"`
	Username   string `db:"username" json:"username"`
	ProfilePic string `db:"profile_pic" json:"profile_pic"`
}

package model

import "time"

// Couple is the pairing unit joining two accounts. It carries a
// short human-shareable join code. A couple exists from the moment
// one member generates a code and is removed when its last member
// disconnects.
//
// Fields:
//  ID        – uuid primary key.
//  Code      – unique uppercase alphanumeric join code.
//  CreatedAt – creation timestamp.
type Couple struct {
	ID        string    // couples.id
	Code      string    // couples.code
	CreatedAt time.Time // couples.created_at
}

// Membership links one account to one couple. A user has at most one
// active membership (unique key on user_id) and a couple holds at
// most two memberships, enforced at redemption time.
//
// Fields:
//  ID        – uuid primary key.
//  CoupleID  – couple the account belongs to.
//  UserID    – the member account.
//  CreatedAt – creation timestamp.
type Membership struct {
	ID        string    // couple_members.id
	CoupleID  string    // couple_members.couple_id
	UserID    string    // couple_members.user_id
	CreatedAt time.Time // couple_members.created_at
}

// Partner is the resolved view of the other member of the caller's
// couple. It is derived, never stored: membership row -> other
// membership -> profile.
type Partner struct {
	UserID   string `json:"user_id"`
	Name     string `json:"name"`
	CoupleID string `json:"couple_id"`
}

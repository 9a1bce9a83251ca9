package model

import "time"

// Note is a short message from one member of a couple to the other.
// Notes are immutable once created; the only mutation is the
// receiver stamping read_at.
//
// Fields:
//  ID         – uuid primary key.
//  CoupleID   – couple the note is scoped to.
//  SenderID   – account that wrote the note.
//  ReceiverID – account the note is addressed to.
//  Content    – message text, at most 100 characters.
//  CreatedAt  – creation timestamp.
//  ReadAt     – when the receiver read it (null until then).
type Note struct {
	ID         string     `json:"id"`          // notes.id
	CoupleID   string     `json:"couple_id"`   // notes.couple_id
	SenderID   string     `json:"sender_id"`   // notes.sender_id
	ReceiverID string     `json:"receiver_id"` // notes.receiver_id
	Content    string     `json:"content"`     // notes.content
	CreatedAt  time.Time  `json:"created_at"`  // notes.created_at
	ReadAt     *time.Time `json:"read_at"`     // notes.read_at (nullable)
}

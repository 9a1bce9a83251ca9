package repository

import (
	"context"
	"database/sql"

	"github.com/google/uuid"

	"github.com/duohabit/duohabit/internal/model"
)

// NoteRepo reads and writes notes exchanged inside a couple.
type NoteRepo struct{ DB *sql.DB }

func NewNoteRepo(db *sql.DB) *NoteRepo { return &NoteRepo{DB: db} }

// Create inserts a note from sender to receiver and returns its id.
func (r *NoteRepo) Create(ctx context.Context, coupleID, senderID, receiverID, content string) (string, error) {
	id := uuid.NewString()
	_, err := r.DB.ExecContext(ctx,
		"INSERT INTO notes (id, couple_id, sender_id, receiver_id, content) VALUES (?,?,?,?,?)",
		id, coupleID, senderID, receiverID, content)
	if err != nil {
		return "", err
	}
	return id, nil
}

// LatestReceived returns the newest note the receiver got from the
// sender, or sql.ErrNoRows when none was ever sent. The caller maps
// the miss to a null payload, not an error.
func (r *NoteRepo) LatestReceived(ctx context.Context, receiverID, senderID string) (model.Note, error) {
	var n model.Note
	var readAt sql.NullTime
	err := r.DB.QueryRowContext(ctx,
		`SELECT id, couple_id, sender_id, receiver_id, content, created_at, read_at
		 FROM notes
		 WHERE receiver_id=? AND sender_id=?
		 ORDER BY created_at DESC, id DESC LIMIT 1`,
		receiverID, senderID).Scan(&n.ID, &n.CoupleID, &n.SenderID, &n.ReceiverID, &n.Content, &n.CreatedAt, &readAt)
	if err != nil {
		return n, err
	}
	if readAt.Valid {
		t := readAt.Time
		n.ReadAt = &t
	}
	return n, nil
}

// MarkRead stamps a note as read by its receiver. Idempotent: a note
// already read keeps its original timestamp, and a note addressed to
// someone else is reported as ErrForbidden.
func (r *NoteRepo) MarkRead(ctx context.Context, noteID, receiverID string) error {
	res, err := r.DB.ExecContext(ctx,
		"UPDATE notes SET read_at=NOW() WHERE id=? AND receiver_id=? AND read_at IS NULL",
		noteID, receiverID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n > 0 {
		return nil
	}
	var recv string
	err = r.DB.QueryRowContext(ctx,
		"SELECT receiver_id FROM notes WHERE id=? LIMIT 1", noteID).Scan(&recv)
	if err != nil {
		return err
	}
	if recv != receiverID {
		return ErrForbidden
	}
	return nil // already read
}

package chat

import (
	"context"
	"errors"
	"fmt"

	"github.com/gofrs/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
)

var (
	ErrRoomNotFound    = errors.New("chat room not found")
	ErrMessageNotFound = errors.New("chat message not found")
)

type Repository interface {
	GetRoomByMatchID(ctx context.Context, matchID uuid.UUID) (*Room, error)
	GetRoomByID(ctx context.Context, id uuid.UUID) (*Room, error)
	// CreateRoomWithGreeting inserts the room and its greeting atomically. When
	// another caller created the room first, the existing room is returned with created=false.
	CreateRoomWithGreeting(ctx context.Context, room *Room, greeting *Message) (result *Room, created bool, err error)
	ListMessages(ctx context.Context, roomID uuid.UUID) ([]Message, error)
	InsertMessage(ctx context.Context, msg *Message) error
	GetMessage(ctx context.Context, id uuid.UUID) (*Message, error)
	MarkRead(ctx context.Context, roomID, readerID uuid.UUID) (int64, error)
}

type postgresRepository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) Repository {
	return &postgresRepository{db: db}
}

const roomColumns = `id, breeding_match_id, owner1_id, owner2_id, created_at, updated_at`

const messageColumns = `id, chat_room_id, sender_id, message, message_type, created_at, read_at`

func scanRoom(row pgx.Row) (*Room, error) {
	var r Room
	if err := row.Scan(&r.ID, &r.BreedingMatchID, &r.Owner1ID, &r.Owner2ID, &r.CreatedAt, &r.UpdatedAt); err != nil {
		return nil, err
	}
	return &r, nil
}

func scanMessage(row pgx.Row) (*Message, error) {
	var m Message
	if err := row.Scan(&m.ID, &m.ChatRoomID, &m.SenderID, &m.Message, &m.MessageType, &m.CreatedAt, &m.ReadAt); err != nil {
		return nil, err
	}
	return &m, nil
}

func (r *postgresRepository) GetRoomByMatchID(ctx context.Context, matchID uuid.UUID) (*Room, error) {
	room, err := scanRoom(r.db.QueryRow(ctx, `SELECT `+roomColumns+` FROM chat_rooms WHERE breeding_match_id = $1`, matchID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrRoomNotFound
		}
		return nil, fmt.Errorf("repository: failed to select chat room for match %s: %w", matchID, err)
	}
	return room, nil
}

func (r *postgresRepository) GetRoomByID(ctx context.Context, id uuid.UUID) (*Room, error) {
	room, err := scanRoom(r.db.QueryRow(ctx, `SELECT `+roomColumns+` FROM chat_rooms WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrRoomNotFound
		}
		return nil, fmt.Errorf("repository: failed to select chat room %s: %w", id, err)
	}
	return room, nil
}

func (r *postgresRepository) CreateRoomWithGreeting(ctx context.Context, room *Room, greeting *Message) (result *Room, created bool, err error) {
	if room.ID == uuid.Nil {
		if room.ID, err = uuid.NewV4(); err != nil {
			return nil, false, fmt.Errorf("repository: failed to generate chat room ID: %w", err)
		}
	}
	if greeting.ID == uuid.Nil {
		if greeting.ID, err = uuid.NewV4(); err != nil {
			return nil, false, fmt.Errorf("repository: failed to generate chat message ID: %w", err)
		}
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("repository: failed to begin transaction: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			log.Error().Interface("panic_value", p).Stringer("match_id", room.BreedingMatchID).Msg("Panic recovered during CreateRoomWithGreeting, rolling back")
			if rbErr := tx.Rollback(ctx); rbErr != nil {
				log.Error().Err(rbErr).Msg("Failed to rollback transaction after panic")
			}
			panic(p)
		} else if err != nil || !created {
			if rbErr := tx.Rollback(ctx); rbErr != nil {
				log.Error().Err(rbErr).Stringer("match_id", room.BreedingMatchID).Msg("Failed to rollback transaction")
			}
		} else if commitErr := tx.Commit(ctx); commitErr != nil {
			log.Error().Err(commitErr).Stringer("room_id", room.ID).Msg("Failed to commit transaction")
			err = fmt.Errorf("repository: failed to commit transaction: %w", commitErr)
			result, created = nil, false
		}
	}()

	inserted, err := scanRoom(tx.QueryRow(ctx, `
		INSERT INTO chat_rooms (id, breeding_match_id, owner1_id, owner2_id)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (breeding_match_id) DO NOTHING
		RETURNING `+roomColumns,
		room.ID, room.BreedingMatchID, room.Owner1ID, room.Owner2ID,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		log.Info().Stringer("match_id", room.BreedingMatchID).Msg("repository: chat room created concurrently, reusing it")
		existing, getErr := r.GetRoomByMatchID(ctx, room.BreedingMatchID)
		if getErr != nil {
			err = getErr
			return nil, false, err
		}
		err = nil
		return existing, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("repository: failed to insert chat room: %w", err)
	}

	greeting.ChatRoomID = inserted.ID
	err = tx.QueryRow(ctx, `
		INSERT INTO chat_messages (id, chat_room_id, sender_id, message, message_type)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at
	`, greeting.ID, greeting.ChatRoomID, greeting.SenderID, greeting.Message, string(greeting.MessageType)).Scan(&greeting.CreatedAt)
	if err != nil {
		return nil, false, fmt.Errorf("repository: failed to insert greeting for room %s: %w", inserted.ID, err)
	}

	return inserted, true, nil
}

// ListMessages returns the full history of a room in (created_at, id) order.
func (r *postgresRepository) ListMessages(ctx context.Context, roomID uuid.UUID) ([]Message, error) {
	rows, err := r.db.Query(ctx, `
		SELECT `+messageColumns+`
		FROM chat_messages
		WHERE chat_room_id = $1
		ORDER BY created_at ASC, id ASC
	`, roomID)
	if err != nil {
		return nil, fmt.Errorf("repository: failed to query messages for room %s: %w", roomID, err)
	}
	defer rows.Close()

	messages := make([]Message, 0)
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("repository: failed to scan message for room %s: %w", roomID, err)
		}
		messages = append(messages, *m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("repository: error iterating messages for room %s: %w", roomID, err)
	}
	return messages, nil
}

func (r *postgresRepository) InsertMessage(ctx context.Context, msg *Message) error {
	if msg.ID == uuid.Nil {
		id, err := uuid.NewV4()
		if err != nil {
			return fmt.Errorf("repository: failed to generate chat message ID: %w", err)
		}
		msg.ID = id
	}

	err := r.db.QueryRow(ctx, `
		INSERT INTO chat_messages (id, chat_room_id, sender_id, message, message_type)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at
	`, msg.ID, msg.ChatRoomID, msg.SenderID, msg.Message, string(msg.MessageType)).Scan(&msg.CreatedAt)
	if err != nil {
		return fmt.Errorf("repository: failed to insert message into room %s: %w", msg.ChatRoomID, err)
	}
	return nil
}

func (r *postgresRepository) GetMessage(ctx context.Context, id uuid.UUID) (*Message, error) {
	m, err := scanMessage(r.db.QueryRow(ctx, `SELECT `+messageColumns+` FROM chat_messages WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrMessageNotFound
		}
		return nil, fmt.Errorf("repository: failed to select message %s: %w", id, err)
	}
	return m, nil
}

// MarkRead stamps read_at on unread messages in the room that readerID did not send.
func (r *postgresRepository) MarkRead(ctx context.Context, roomID, readerID uuid.UUID) (int64, error) {
	cmdTag, err := r.db.Exec(ctx, `
		UPDATE chat_messages
		SET read_at = NOW()
		WHERE chat_room_id = $1 AND sender_id <> $2 AND read_at IS NULL
	`, roomID, readerID)
	if err != nil {
		return 0, fmt.Errorf("repository: failed to mark messages read in room %s: %w", roomID, err)
	}
	return cmdTag.RowsAffected(), nil
}

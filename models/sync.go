package models

import "time"

// SyncInboxEvent — строка журнала входящих событий от edge-станции.
// Пара (edge_id, seq) уникальна; строка пишется ровно один раз на событие
// и является источником истины для идемпотентности.
type SyncInboxEvent struct {
	ID         int       `json:"id" db:"id"`
	EventID    string    `json:"event_id" db:"event_id"`
	EdgeID     string    `json:"edge_id" db:"edge_id"`
	Seq        int64     `json:"seq" db:"seq"`
	ReceivedAt time.Time `json:"received_at" db:"received_at"`
	Applied    bool      `json:"applied" db:"applied"`
	Error      *string   `json:"error,omitempty" db:"error"`
}

// SyncEdgeState — чекпоинт станции. Создаётся лениво при первом контакте,
// last_applied_seq только растёт.
type SyncEdgeState struct {
	EdgeID         string    `json:"edge_id" db:"edge_id"`
	LastAppliedSeq int64     `json:"last_applied_seq" db:"last_applied_seq"`
	UpdatedAt      time.Time `json:"updated_at" db:"updated_at"`
}

// EdgeStation — зарегистрированная татами-станция. KeyHash — bcrypt
// от выданного при регистрации ключа.
type EdgeStation struct {
	EdgeID    string    `json:"edge_id" db:"edge_id"`
	Name      string    `json:"name" db:"name"`
	KeyHash   string    `json:"-" db:"key_hash"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

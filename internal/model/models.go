package model

import (
	"time"

	"gorm.io/datatypes"
)

// 2.1 Accounts

type User struct {
	ID           int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	Username     string    `gorm:"unique;not null" json:"username"`
	PasswordHash string    `gorm:"not null" json:"-"`
	Nickname     string    `json:"nickname"`
	Avatar       string    `json:"avatar"`
	Rating       int       `gorm:"default:1200;not null" json:"rating"`
	Status       string    `gorm:"default:normal;not null" json:"status"` // normal/banned
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

type Admin struct {
	ID           int64  `gorm:"primaryKey;autoIncrement"`
	Username     string `gorm:"unique;not null"`
	PasswordHash string `gorm:"not null"`
	DisplayName  string
	Status       string `gorm:"default:active;not null"` // active/disabled
	LastLoginAt  *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// 2.2 Catalog & statistics

type GameType struct {
	ID          int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	Name        string    `gorm:"unique;not null" json:"name"` // e.g. "chess", "checkers"
	DisplayName string    `json:"displayName"`
	Description string    `json:"description"`
	Status      string    `gorm:"default:enabled;not null" json:"status"` // enabled/disabled
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

type GameStats struct {
	ID        int64     `gorm:"primaryKey;autoIncrement" json:"-"`
	UserID    int64     `gorm:"uniqueIndex:idx_stats_user_type;not null" json:"userId"`
	GameType  string    `gorm:"uniqueIndex:idx_stats_user_type;not null" json:"gameType"`
	Played    int       `gorm:"default:0" json:"played"`
	Won       int       `gorm:"default:0" json:"won"`
	Lost      int       `gorm:"default:0" json:"lost"`
	Drawn     int       `gorm:"default:0" json:"drawn"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// 2.3 Games

const (
	GameStatusInProgress = "in_progress"
	GameStatusFinished   = "finished"
	GameStatusAbandoned  = "abandoned"
)

// Game is a two-player session. PlayerOne moves first.
type Game struct {
	ID          int64          `gorm:"primaryKey;autoIncrement" json:"id"`
	PublicID    string         `gorm:"unique;not null" json:"publicId"`
	GameType    string         `gorm:"index;not null" json:"gameType"`
	PlayerOneID int64          `gorm:"index;not null" json:"playerOneId"`
	PlayerTwoID int64          `gorm:"index;not null" json:"playerTwoId"`
	Status      string         `gorm:"default:in_progress;not null" json:"status"`
	TurnUserID  int64          `json:"turnUserId"`
	WinnerID    *int64         `json:"winnerId,omitempty"`
	BoardJSON   datatypes.JSON `gorm:"type:jsonb" json:"boardJson,omitempty"`
	CreatedAt   time.Time      `json:"createdAt"`
	EndedAt     *time.Time     `json:"endedAt,omitempty"`

	PlayerOne *User `gorm:"foreignKey:PlayerOneID" json:"playerOne,omitempty"`
	PlayerTwo *User `gorm:"foreignKey:PlayerTwoID" json:"playerTwo,omitempty"`
}

type GameMove struct {
	ID          int64          `gorm:"primaryKey;autoIncrement" json:"id"`
	GameID      int64          `gorm:"index;not null" json:"gameId"`
	UserID      int64          `gorm:"not null" json:"userId"`
	MoveNo      int            `gorm:"not null" json:"moveNo"`
	PayloadJSON datatypes.JSON `gorm:"type:jsonb" json:"payload"`
	CreatedAt   time.Time      `json:"createdAt"`
}

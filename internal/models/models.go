package models

import (
	"time"
)

const (
	PrivacyPublic  = "public"
	PrivacyPrivate = "private"
)

type User struct {
	ID       int    `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"-"`
	About    string `json:"about"`
	Points   int    `json:"points"`
	Streak   int    `json:"streak"`
	// LastActiveDate is a UTC calendar day; zero means the user has no visit yet.
	LastActiveDate time.Time `json:"-"`
	JoinedRooms    []int     `json:"joinedRooms"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

// PublicUser is the user shape returned by signup and login.
type PublicUser struct {
	ID       int    `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
	About    string `json:"about"`
	Streak   int    `json:"streak"`
	Points   int    `json:"points"`
}

func (u *User) Public() PublicUser {
	return PublicUser{
		ID:       u.ID,
		Username: u.Username,
		Email:    u.Email,
		About:    u.About,
		Streak:   u.Streak,
		Points:   u.Points,
	}
}

type Profile struct {
	ID                int    `json:"id"`
	Username          string `json:"username"`
	Email             string `json:"email"`
	About             string `json:"about"`
	Streak            int    `json:"streak"`
	Points            int    `json:"points"`
	JoinedRoomsCount  int    `json:"joinedRoomsCount"`
	CreatedRoomsCount int    `json:"createdRoomsCount"`
	CreatorBadge      bool   `json:"creatorBadge"`
}

type Room struct {
	ID               int       `json:"id"`
	RoomID           string    `json:"roomId"`
	Name             string    `json:"name"`
	Category         string    `json:"category"`
	Title            string    `json:"title"`
	Privacy          string    `json:"privacy"`
	CreatedBy        int       `json:"createdBy"`
	TaskPoints       int       `json:"taskPoints"`
	DailyBonusPoints int       `json:"dailyBonusPoints"`
	StreakMultiplier float64   `json:"streakMultiplier"`
	IsActive         bool      `json:"isActive"`
	Views            int       `json:"views"`
	JoinedUsers      []int     `json:"joinedUsers"`
	CreatedAt        time.Time `json:"createdAt"`
	UpdatedAt        time.Time `json:"updatedAt"`
}

// RoomDefaults are applied when a create request leaves reward settings out.
var RoomDefaults = struct {
	TaskPoints       int
	DailyBonusPoints int
	StreakMultiplier float64
}{15, 60, 1}

type RoomCreator struct {
	ID       int    `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
}

type RoomDetails struct {
	Room
	Creator          RoomCreator `json:"creator"`
	JoinedUsersCount int         `json:"joinedUsersCount"`
}

type JoinResult struct {
	Joined           bool   `json:"joined"`
	Points           int    `json:"points"`
	JoinedRoomsCount int    `json:"joinedRoomsCount"`
	RoomID           string `json:"roomId"`
}

// RecentRoom is the landing page summary of a public room.
type RecentRoom struct {
	RoomID    string    `json:"roomId"`
	Name      string    `json:"name"`
	Title     string    `json:"title"`
	Category  string    `json:"category"`
	CreatedAt time.Time `json:"createdAt"`
}

func (r *Room) Recent() RecentRoom {
	return RecentRoom{RoomID: r.RoomID, Name: r.Name, Title: r.Title, Category: r.Category, CreatedAt: r.CreatedAt}
}

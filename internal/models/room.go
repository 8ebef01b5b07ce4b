package models

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

const (
	personalRoomPrefix = "personal_"
	groupRoomPrefix    = "group_"
)

// PersonalRoom returns the canonical room for a two-party conversation.
// The name is the same whichever participant asks for it.
func PersonalRoom(a, b int) string {
	lo, hi := a, b
	if hi < lo {
		lo, hi = hi, lo
	}
	return fmt.Sprintf("%s%d_%d", personalRoomPrefix, lo, hi)
}

func GroupRoom(groupID int) string {
	return fmt.Sprintf("%s%d", groupRoomPrefix, groupID)
}

func IsGroupRoom(room string) bool {
	return strings.HasPrefix(room, groupRoomPrefix)
}

func IsPersonalRoom(room string) bool {
	return strings.HasPrefix(room, personalRoomPrefix)
}

// ParsePersonalRoom returns the two user IDs of a personal_<lo>_<hi> room.
func ParsePersonalRoom(room string) (lo, hi int, ok bool) {
	rest, found := strings.CutPrefix(room, personalRoomPrefix)
	if !found {
		return 0, 0, false
	}
	a, b, found := strings.Cut(rest, "_")
	if !found {
		return 0, 0, false
	}
	lo, errA := strconv.Atoi(a)
	hi, errB := strconv.Atoi(b)
	if errA != nil || errB != nil {
		return 0, 0, false
	}
	return lo, hi, true
}

// ParseGroupRoom returns the group ID of a group_<id> room.
func ParseGroupRoom(room string) (int, bool) {
	rest, found := strings.CutPrefix(room, groupRoomPrefix)
	if !found {
		return 0, false
	}
	id, err := strconv.Atoi(rest)
	if err != nil {
		return 0, false
	}
	return id, true
}

type Group struct {
	ID        int       `json:"id"`
	Name      string    `json:"name"`
	Room      string    `json:"room"`
	Members   []string  `json:"members"`
	CreatedAt time.Time `json:"created_at"`
}

type CreateGroupRequest struct {
	Name    string   `json:"name"`
	Members []string `json:"members"`
}

func (r CreateGroupRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Name, validation.Required, validation.Length(1, 150)),
		validation.Field(&r.Members, validation.Each(validation.Required)),
	)
}

type PersonalRoomResponse struct {
	Room  string `json:"room"`
	Other string `json:"other"`
}

package database

import "errors"

var (
	ErrNotFound     = errors.New("not found")
	ErrNameTaken    = errors.New("room name already taken")
	ErrLimitInvalid = errors.New("max_servers must be positive")
	ErrAlreadyBound = errors.New("channel already bound to a room")
	ErrRoomFull     = errors.New("room is at max_servers capacity")
	ErrRoomInactive = errors.New("room is inactive")
	ErrGuildBanned  = errors.New("guild is banned")
)

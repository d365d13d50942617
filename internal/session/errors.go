package session

import "errors"

var (
	ErrSessionNotFound     = errors.New("session not found")
	ErrSessionFull         = errors.New("session is full")
	ErrSessionClosed       = errors.New("session is closed")
	ErrAccessCodeMismatch  = errors.New("invalid access code")
	ErrDuplicateIdentity   = errors.New("you cannot use the same name as the host")
	ErrSpectatorWrite      = errors.New("spectators cannot act")
	ErrSpectateUnavailable = errors.New("there is no match to watch yet")
	ErrNotParticipant      = errors.New("not a participant of this session")
	ErrRematchUnavailable  = errors.New("rematch is only possible after a match ends")
)

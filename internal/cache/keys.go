package cache

import "fmt"

const (
	SessionKeyPrefix  = "socialnet:session:%s"
	PresenceKeyPrefix = "socialnet:presence:%d"
)

func SessionKey(name string) string {
	return fmt.Sprintf(SessionKeyPrefix, name)
}

func PresenceKey(userID int) string {
	return fmt.Sprintf(PresenceKeyPrefix, userID)
}

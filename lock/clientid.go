package lock

import (
	"github.com/google/uuid"

	"github.com/arborlabs/arbor/models"
)

// truncatedSessionLen leaves headroom under the store's cap when a long
// session id is cut down, so derived ids stay distinguishable from the
// synthetic "web-" form.
const truncatedSessionLen = 20

// DeriveClientID turns a session identifier into a lock client id that
// fits the store's bounded length. The client id, not the user name alone,
// is what tells two sessions of the same user apart at save time. A
// session id within the cap is used as-is; a longer one is truncated; an
// absent one yields a synthetic id from a fresh UUID.
func DeriveClientID(sessionID string) string {
	if sessionID != "" {
		if len(sessionID) <= models.MaxClientIDLen {
			return sessionID
		}
		return sessionID[:truncatedSessionLen]
	}
	id := "web-" + uuid.NewString()
	return id[:models.MaxClientIDLen]
}

package core

import "github.com/google/uuid"

var statusNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("urn:ticket-automation:status"))

// StatusID derives the status board key for a message. The same mailbox,
// UIDVALIDITY and UID always give the same ID, so a message that is fetched
// again after a restart or reconnect lands on its existing row.
func StatusID(ref MessageRef) string {
	return uuid.NewSHA1(statusNamespace, []byte(ref.String())).String()
}

package wot

import (
	"context"
	"time"
)

// ContactList is the latest follow list observed for one pubkey, the edge
// set of the local trust graph.
type ContactList struct {
	pubkey    string
	follows   []string
	eventID   string
	createdAt time.Time
}

// NewContactList creates a ContactList.
func NewContactList(pubkey string, follows []string, eventID string, createdAt time.Time) ContactList {
	cp := make([]string, len(follows))
	copy(cp, follows)
	return ContactList{
		pubkey:    pubkey,
		follows:   cp,
		eventID:   eventID,
		createdAt: createdAt,
	}
}

// Pubkey returns the list owner.
func (c ContactList) Pubkey() string { return c.pubkey }

// Follows returns the followed pubkeys.
func (c ContactList) Follows() []string {
	cp := make([]string, len(c.follows))
	copy(cp, c.follows)
	return cp
}

// EventID returns the source event the list was taken from.
func (c ContactList) EventID() string { return c.eventID }

// CreatedAt returns the source event timestamp. Only newer lists replace
// a stored one.
func (c ContactList) CreatedAt() time.Time { return c.createdAt }

// GraphStore persists the local follow graph.
type GraphStore interface {
	// SaveContactList stores the list if it is newer than the stored one
	// for the same pubkey.
	SaveContactList(ctx context.Context, list ContactList) error

	// Follows returns the follow list of a pubkey, empty when unknown.
	Follows(ctx context.Context, pubkey string) ([]string, error)

	// FollowsBatch returns follow lists for many pubkeys in one query.
	// Unknown pubkeys are absent from the result map.
	FollowsBatch(ctx context.Context, pubkeys []string) (map[string][]string, error)
}

// Package clustermodel defines the cluster/stripe/node value types that make
// up a Nomad-managed topology, and the node context used to resolve "this
// node" within a cluster snapshot.
package clustermodel

import "github.com/google/uuid"

// UID identifies a Cluster, Stripe or Node. UIDs are unique cluster-wide
// (spec invariant: "Cluster UIDs are globally unique across
// Cluster/Stripe/Node"). They are generated from a time-ordered scheme so
// that UIDs sort roughly in creation order, which is useful for log output
// and for the V1-compat name-based fallback lookups never needing to worry
// about UID collisions across successive attach operations.
type UID string

// NewUID mints a fresh time-ordered UID.
func NewUID() UID {
	id, err := uuid.NewV7()
	if err != nil {
		// NewV7 only fails if the system clock/random source is broken;
		// falling back to NewRandom keeps UID generation total.
		return UID(uuid.NewString())
	}
	return UID(id.String())
}

// Empty reports whether the UID is unset.
func (u UID) Empty() bool { return u == "" }

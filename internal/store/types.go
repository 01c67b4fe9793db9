package store

// ClaimStatus is the outcome of a claim attempt for an emergency order.
type ClaimStatus string

const (
	ClaimGranted  ClaimStatus = "granted"
	ClaimDenied   ClaimStatus = "denied"
	ClaimNotFound ClaimStatus = "not_found"
)

// ClaimResult carries the claim outcome; OwnerID/OwnerName are populated
// only when the claim was denied because another technician holds the order.
type ClaimResult struct {
	Status    ClaimStatus
	OwnerID   int64
	OwnerName string
}

// PendingAlert is the cold-start recovery view for one technician: the
// emergency order that still needs their attention, if any.
type PendingAlert struct {
	OrderID       int64
	NotifyPending bool
}

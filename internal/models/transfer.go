package models

// Transfer represents an intent to move money between two accounts.
type Transfer struct {
	SenderID   int64
	ReceiverID int64
	Amount     int64 // minor units, must be positive
}

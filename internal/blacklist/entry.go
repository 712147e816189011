// Package blacklist manages the suppression list of email addresses that must
// never receive mail. Entries are keyed by the lowercase address and stored in
// a DynamoDB table; the dispatch pipeline reads the store concurrently while
// the admin surface writes to it.
package blacklist

import "time"

// Entry is a single blacklisted address. The address is the unique key
// (always lowercase); no separate identifier exists. Date is the creation
// time in seconds since epoch.
type Entry struct {
	Email string `json:"Email"`
	Date  int64  `json:"Date"`
}

// Key returns the partition key, derived from the email field alone.
func (e Entry) Key() string { return e.Email }

// CreatedAt returns the creation time derived from the unix timestamp.
func (e Entry) CreatedAt() time.Time { return time.Unix(e.Date, 0).UTC() }

package model

import "time"

// Reader is a patron identified by a unique mobile number. Contact and
// address columns are nullable so that a NULL can be told apart from an
// empty string when comparing against incoming data.
type Reader struct {
	ID        int64     `db:"id" json:"id"`               // readers.id
	Firstname *string   `db:"firstname" json:"firstname"` // readers.firstname
	Lastname  *string   `db:"lastname" json:"lastname"`   // readers.lastname
	Mobile    string    `db:"mobile" json:"mobile"`       // readers.mobile (unique)
	Email     *string   `db:"email" json:"email"`         // readers.email
	Address   *string   `db:"address" json:"address"`     // readers.address
	City      *string   `db:"city" json:"city"`           // readers.city
	State     *string   `db:"state" json:"state"`         // readers.state
	Pincode   *string   `db:"pincode" json:"pincode"`     // readers.pincode
	IsActive  bool      `db:"isactive" json:"isactive"`   // readers.isactive
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
}

// ReaderFields is the set of reader attributes whose change is recorded in
// the reader history.
type ReaderFields struct {
	Firstname *string `json:"firstname"`
	Lastname  *string `json:"lastname"`
	Email     *string `json:"email"`
	Address   *string `json:"address"`
	City      *string `json:"city"`
	State     *string `json:"state"`
	Pincode   *string `json:"pincode"`
}

// Tracked returns the reader's current tracked attributes.
func (r *Reader) Tracked() ReaderFields {
	return ReaderFields{
		Firstname: r.Firstname,
		Lastname:  r.Lastname,
		Email:     r.Email,
		Address:   r.Address,
		City:      r.City,
		State:     r.State,
		Pincode:   r.Pincode,
	}
}

// SetTracked overwrites every tracked attribute, including with nil.
func (r *Reader) SetTracked(f ReaderFields) {
	r.Firstname = f.Firstname
	r.Lastname = f.Lastname
	r.Email = f.Email
	r.Address = f.Address
	r.City = f.City
	r.State = f.State
	r.Pincode = f.Pincode
}

// Equal reports whether every field matches. A nil value only equals nil.
func (f ReaderFields) Equal(o ReaderFields) bool {
	return sameString(f.Firstname, o.Firstname) &&
		sameString(f.Lastname, o.Lastname) &&
		sameString(f.Email, o.Email) &&
		sameString(f.Address, o.Address) &&
		sameString(f.City, o.City) &&
		sameString(f.State, o.State) &&
		sameString(f.Pincode, o.Pincode)
}

func sameString(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

// ReaderHistory is an immutable snapshot of a reader's tracked fields taken
// right before they were overwritten.
type ReaderHistory struct {
	ID        int64     `db:"id" json:"id"`
	ReaderID  int64     `db:"reader_id" json:"readerId"`
	Firstname *string   `db:"firstname" json:"firstname"`
	Lastname  *string   `db:"lastname" json:"lastname"`
	Email     *string   `db:"email" json:"email"`
	Address   *string   `db:"address" json:"address"`
	City      *string   `db:"city" json:"city"`
	State     *string   `db:"state" json:"state"`
	Pincode   *string   `db:"pincode" json:"pincode"`
	ChangedAt time.Time `db:"changed_at" json:"changedAt"`
}

// NewReaderHistory snapshots r's tracked fields at the given time.
func NewReaderHistory(r *Reader, at time.Time) *ReaderHistory {
	return &ReaderHistory{
		ReaderID:  r.ID,
		Firstname: r.Firstname,
		Lastname:  r.Lastname,
		Email:     r.Email,
		Address:   r.Address,
		City:      r.City,
		State:     r.State,
		Pincode:   r.Pincode,
		ChangedAt: at,
	}
}

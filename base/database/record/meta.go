package record

import (
	"time"
)

// Meta holds record metadata.
type Meta struct {
	Created  int64
	Modified int64
	Expires  int64
	Deleted  int64
}

// SetAbsoluteExpiry sets an absolute expiry time (in seconds), that is not
// affected when the record is updated.
func (m *Meta) SetAbsoluteExpiry(seconds int64) {
	m.Expires = seconds
	m.Deleted = 0
}

// SetRelativateExpiry sets a relative expiry time (ie. TTL in seconds) that
// is automatically updated whenever the record is updated/saved.
func (m *Meta) SetRelativateExpiry(seconds int64) {
	if seconds >= 0 {
		m.Deleted = -seconds
	}
}

// GetAbsoluteExpiry returns the absolute expiry time.
func (m *Meta) GetAbsoluteExpiry() int64 {
	return m.Expires
}

// GetRelativeExpiry returns the seconds until expiry. Returns 0 if the
// record does not expire.
func (m *Meta) GetRelativeExpiry() int64 {
	if m.Deleted < 0 {
		return -m.Deleted
	}
	if m.Expires == 0 {
		return 0
	}

	abs := m.Expires - time.Now().Unix()
	if abs < 0 {
		return 0
	}
	return abs
}

// Update updates the internal meta states and should be called before
// writing the record to the database.
func (m *Meta) Update() {
	now := time.Now().Unix()
	m.Modified = now
	if m.Created == 0 {
		m.Created = now
	}
	if m.Deleted < 0 {
		m.Expires = now - m.Deleted
	}
}

// Reset resets all metadata.
func (m *Meta) Reset() {
	m.Created = 0
	m.Modified = 0
	m.Expires = 0
	m.Deleted = 0
}

// Delete marks the record as deleted.
func (m *Meta) Delete() {
	m.Deleted = time.Now().Unix()
}

// IsDeleted returns whether the record is deleted.
func (m *Meta) IsDeleted() bool {
	return m.Deleted > 0
}

// CheckValidity checks whether the database record is valid.
func (m *Meta) CheckValidity() (valid bool) {
	switch {
	case m.Deleted > 0:
		return false
	case m.Expires > 0 && m.Expires < time.Now().Unix():
		return false
	default:
		return true
	}
}

// Duplicate returns a new copy of the Meta object.
func (m *Meta) Duplicate() *Meta {
	return &Meta{
		Created:  m.Created,
		Modified: m.Modified,
		Expires:  m.Expires,
		Deleted:  m.Deleted,
	}
}

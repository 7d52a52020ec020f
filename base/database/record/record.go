package record

// Record provides an interface for uniformly handling database records.
type Record interface {
	SetKey(key string)
	Key() string
	KeyIsSet() bool
	DatabaseName() string
	DatabaseKey() string

	// Metadata.
	Meta() *Meta
	SetMeta(meta *Meta)
	CreateMeta()
	UpdateMeta()

	// Serialization.
	Marshal(self Record, format uint8) ([]byte, error)
	MarshalRecord(self Record) ([]byte, error)

	// Locking.
	Lock()
	Unlock()

	// Wrapping.
	IsWrapped() bool
}

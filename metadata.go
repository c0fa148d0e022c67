package imapc

// MetadataEntry is one GETMETADATA/SETMETADATA entry/value pair (RFC
// 5464). Value is nil for an entry whose value is NIL (absent, or
// explicitly cleared by SETMETADATA).
type MetadataEntry struct {
	Mailbox string
	Entry   string
	Value   *string
}

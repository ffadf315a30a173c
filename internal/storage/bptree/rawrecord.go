package bptree

// rawRecord is a fixed-width byte-slice adapter so pagefile.Store (which
// speaks in terms of the Record interface) can be driven directly by
// bptree's own hand-rolled node/page encodings, without requiring the
// generic codec state that a Record's pointer-receiver methods would
// otherwise need access to.
type rawRecord struct {
	data []byte
}

func (r rawRecord) MarshalBinary() ([]byte, error) {
	return r.data, nil
}

func (r *rawRecord) UnmarshalBinary(b []byte) error {
	if r.data == nil || len(r.data) != len(b) {
		r.data = make([]byte, len(b))
	}
	copy(r.data, b)
	return nil
}

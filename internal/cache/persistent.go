package cache

import "context"

// Persistent is the optional second cache tier. Entries are opaque
// EncodeEntry payloads. Get methods report a miss with ok == false and a
// nil error.
type Persistent interface {
	GetGlobal(ctx context.Context, hash string) (data []byte, ok bool, err error)
	PutGlobal(ctx context.Context, hash string, data []byte) error
	RemoveGlobal(ctx context.Context, hash string) error
	GetPerNote(ctx context.Context, noteID, hash string) (data []byte, ok bool, err error)
	PutPerNote(ctx context.Context, noteID, hash string, data []byte) error
	RemovePerNote(ctx context.Context, noteID, hash string) error
	ClearNote(ctx context.Context, noteID string) error
}

// NopPersistent is a Persistent that stores nothing.
type NopPersistent struct{}

var _ Persistent = NopPersistent{}

func (NopPersistent) GetGlobal(context.Context, string) ([]byte, bool, error) { return nil, false, nil }
func (NopPersistent) PutGlobal(context.Context, string, []byte) error { return nil }
func (NopPersistent) RemoveGlobal(context.Context, string) error { return nil }
func (NopPersistent) GetPerNote(context.Context, string, string) ([]byte, bool, error) {
	return nil, false, nil
}
func (NopPersistent) PutPerNote(context.Context, string, string, []byte) error { return nil }
func (NopPersistent) RemovePerNote(context.Context, string, string) error { return nil }
func (NopPersistent) ClearNote(context.Context, string) error { return nil }

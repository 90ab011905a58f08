package identity

import (
	"time"
)

// Identity is a local user record. Directory authentication only ever
// mutates the Admin flag and the folder-access preference; everything else
// belongs to whoever administers the store.
type Identity struct {
	ID         string   `json:"id"`
	Name       string   `json:"name"`
	Admin      bool     `json:"admin"`
	Folders    []string `json:"folders,omitempty"`
	AllFolders bool     `json:"all_folders"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Clone returns a deep copy so stores can hand out records without callers
// mutating shared state.
func (i *Identity) Clone() *Identity {
	out := *i
	if i.Folders != nil {
		out.Folders = append([]string(nil), i.Folders...)
	}
	return &out
}

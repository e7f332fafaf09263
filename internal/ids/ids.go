package ids

import "github.com/segmentio/ksuid"

// New returns a k-sortable random id, used for listing ids and blob names.
func New() string {
	return ksuid.New().String()
}

package types

// Status is a type for the lifecycle status of a persisted resource in the
// database. This is distinct from the domain status of a schedule or mandate
// and is used to soft-delete rows and exclude them from queries.
type Status string

const (
	StatusPublished Status = "published"
	StatusArchived  Status = "archived"
	StatusDeleted   Status = "deleted"
)

func (s Status) String() string {
	return string(s)
}

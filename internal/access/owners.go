package access

// Owners is the set of operator user ids.
type Owners map[int64]struct{}

func NewOwners(ids []int64) Owners {
	o := make(Owners, len(ids))
	for _, id := range ids {
		o[id] = struct{}{}
	}
	return o
}

func (o Owners) IsOwner(userID int64) bool {
	_, ok := o[userID]
	return ok
}

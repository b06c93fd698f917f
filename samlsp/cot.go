package samlsp

// CircleOfTrust is a named set of entity IDs that are allowed to interact
// with this SP for a given purpose (§4.6, §7 ErrNotInCircleOfTrust). A SP
// typically has one circle of trust per federation it participates in.
type CircleOfTrust struct {
	Name      string
	EntityIDs map[string]struct{}
}

// NewCircleOfTrust builds a CircleOfTrust from a name and a list of member
// entity IDs.
func NewCircleOfTrust(name string, entityIDs ...string) *CircleOfTrust {
	cot := &CircleOfTrust{
		Name:      name,
		EntityIDs: make(map[string]struct{}, len(entityIDs)),
	}
	for _, id := range entityIDs {
		cot.EntityIDs[id] = struct{}{}
	}
	return cot
}

// Contains reports whether entityID is a member of this circle of trust.
func (c *CircleOfTrust) Contains(entityID string) bool {
	if c == nil {
		return false
	}
	_, ok := c.EntityIDs[entityID]
	return ok
}

// Add registers an additional member entity ID.
func (c *CircleOfTrust) Add(entityID string) {
	c.EntityIDs[entityID] = struct{}{}
}

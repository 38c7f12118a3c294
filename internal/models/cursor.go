package models

const DefaultPageSize = 10

// Cursor tracks how far back history has been loaded. It only moves toward
// older messages.
type Cursor struct {
	Token     string
	PageSize  int
	Exhausted bool
}

func NewCursor(pageSize int) *Cursor {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	return &Cursor{PageSize: pageSize}
}

// Advance records the token for the next older page. An empty token means
// there is nothing older.
func (c *Cursor) Advance(next string) {
	c.Token = next
	c.Exhausted = next == ""
}

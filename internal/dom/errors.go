package dom

import (
	"errors"
	"fmt"
)

// ErrDetached is a fatal structural failure: an instruction tried to insert
// or replace relative to a node that has no parent.
var ErrDetached = errors.New("reference node is detached from the tree")

// PathError is a fatal navigation failure: a child-index step in a path
// exceeded the child count of the node reached so far.
type PathError struct {
	Step     int // zero-based position of the failing step in the path
	Index    int // requested child index
	Children int // actual child count at that point
}

// Error implements the error interface.
func (e *PathError) Error() string {
	return fmt.Sprintf("path step %d out of bounds: child index %d of %d children", e.Step, e.Index, e.Children)
}

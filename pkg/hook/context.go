package hook

import "github.com/sandrolain/gomapper/pkg/types"

// Snapshot holds the state a hook context is built from.
type Snapshot struct {
	Stage      Stage
	RunID      string
	Source     types.Value
	Target     types.Value
	Path       types.Path
	SourcePath string
	Value      types.Value
}

// Context is the read-only view handed to hooks. Getters of containers
// return copies, so hooks cannot change the pass through them.
type Context struct {
	snap Snapshot
}

// NewContext wraps snap.
func NewContext(snap Snapshot) *Context {
	return &Context{snap: snap}
}

// Stage returns the running stage.
func (c *Context) Stage() Stage { return c.snap.Stage }

// RunID returns the identifier of the mapping pass.
func (c *Context) RunID() string { return c.snap.RunID }

// Source returns a copy of the source data.
func (c *Context) Source() types.Value { return c.snap.Source.Clone() }

// Target returns a copy of the target built so far.
func (c *Context) Target() types.Value { return c.snap.Target.Clone() }

// Path returns the target key path of the current value. It is empty for
// BeforeAll and AfterAll.
func (c *Context) Path() types.Path { return c.snap.Path }

// SourcePath returns the source expression of the current value, if any.
func (c *Context) SourcePath() string { return c.snap.SourcePath }

// Value returns a copy of the current value: the resolved value for
// BeforeTransform, the transformed one for AfterTransform, the target for
// AfterAll and the source for BeforeAll.
func (c *Context) Value() types.Value { return c.snap.Value.Clone() }

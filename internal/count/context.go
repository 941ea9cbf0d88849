package count

// Context accumulates events. Each worker owns one; they are merged after
// all workers finish.
type Context struct {
	Counts map[string]uint64

	NoFeature  uint64
	Ambiguous  uint64
	LowQuality uint64
	Unmapped   uint64
	Nonunique  uint64
	Skip       uint64

	// Total is the number of units seen, assigned or not.
	Total uint64
}

// NewContext creates an empty context.
func NewContext() *Context {
	return &Context{Counts: make(map[string]uint64)}
}

// Add records one event.
func (c *Context) Add(ev Event) {
	c.Total++

	switch ev.Kind {
	case Assigned:
		c.Counts[ev.FeatureID]++
	case Unmapped:
		c.Unmapped++
	case Skip:
		c.Skip++
	case Nonunique:
		c.Nonunique++
	case LowQuality:
		c.LowQuality++
	case NoFeature:
		c.NoFeature++
	case Ambiguous:
		c.Ambiguous++
	default:
		panic("count: unknown event kind " + ev.Kind.String())
	}
}

// Merge adds every counter of other into c.
func (c *Context) Merge(other *Context) {
	for id, n := range other.Counts {
		c.Counts[id] += n
	}
	c.NoFeature += other.NoFeature
	c.Ambiguous += other.Ambiguous
	c.LowQuality += other.LowQuality
	c.Unmapped += other.Unmapped
	c.Nonunique += other.Nonunique
	c.Skip += other.Skip
	c.Total += other.Total
}

// Assigned returns the number of units assigned to a feature.
func (c *Context) Assigned() uint64 {
	var n uint64
	for _, v := range c.Counts {
		n += v
	}
	return n
}

// Discarded returns the number of units not assigned to a feature.
func (c *Context) Discarded() uint64 {
	return c.NoFeature + c.Ambiguous + c.LowQuality + c.Unmapped + c.Nonunique + c.Skip
}

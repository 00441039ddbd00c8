package resource

// noCopy detects copies of an owning value: the first check records the
// value's address and every later check from a different address panics.
type noCopy struct {
	addr *noCopy
}

func (c *noCopy) check() {
	if c.addr == nil {
		c.addr = c
	} else if c.addr != c {
		panic("resource: illegal copy of an owning GPU resource")
	}
}

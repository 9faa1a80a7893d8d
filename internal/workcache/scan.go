package workcache

// Visit calls fn for each slot index, starting at a random offset and
// proceeding modulo Size() for Size() steps (spec.md §4.4 scan discipline).
// fn returns stop=true to end the scan early (e.g. "no further work needed
// for this RPC", spec.md §4.7.3 step 1).
func (c *Cache) Visit(fn func(i int) (stop bool)) {
	n := c.Size()
	if n == 0 {
		return
	}
	off := c.ScanOffset()
	for step := 0; step < n; step++ {
		i := (off + step) % n
		if fn(i) {
			return
		}
	}
}

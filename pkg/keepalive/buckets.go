package keepalive

// bucketRing partitions tracked connections into a fixed number of ordered
// rotation slots. One slot is swept per tick; the cursor advances after each
// sweep and wraps at the end. Membership invariant: a tracked connection
// belongs to exactly one bucket, equal to its state's bucket index, and the
// bucket entry is removed in the same critical section as the registry entry.
//
// Fixed-size round-robin buckets bound per-tick work to O(n/count) and
// worst-case probe staleness to one full rotation, independent of the total
// connection count.
type bucketRing struct {
	buckets []map[Conn]struct{}
	cursor  int
}

// newBucketRing creates a ring with the given number of buckets.
// count comes from Config.BucketCount and is always at least 1.
func newBucketRing(count int) *bucketRing {
	if count < 1 {
		panic("keepalive: bucket count must be at least 1")
	}
	buckets := make([]map[Conn]struct{}, count)
	for i := range buckets {
		buckets[i] = make(map[Conn]struct{})
	}
	return &bucketRing{buckets: buckets}
}

// count returns the number of buckets.
func (r *bucketRing) count() int {
	return len(r.buckets)
}

// insert adds a connection to the bucket at index.
func (r *bucketRing) insert(conn Conn, index int) {
	r.bucket(index)[conn] = struct{}{}
}

// remove deletes a connection from the bucket at index.
// Safe to call for absent members.
func (r *bucketRing) remove(conn Conn, index int) {
	delete(r.bucket(index), conn)
}

// current returns a snapshot of the members of the bucket under the cursor.
// A snapshot keeps the sweep safe against deletions it performs itself.
func (r *bucketRing) current() []Conn {
	b := r.bucket(r.cursor)
	members := make([]Conn, 0, len(b))
	for conn := range b {
		members = append(members, conn)
	}
	return members
}

// dropCurrent removes a connection from the bucket under the cursor,
// reporting whether it was still a member. Used to repair stale membership
// discovered during a sweep; a false return means the connection was
// removed through the normal path after the sweep snapshot was taken.
func (r *bucketRing) dropCurrent(conn Conn) bool {
	b := r.bucket(r.cursor)
	if _, ok := b[conn]; !ok {
		return false
	}
	delete(b, conn)
	return true
}

// advance moves the cursor to the next bucket, wrapping to 0 at the end.
func (r *bucketRing) advance() {
	r.cursor = (r.cursor + 1) % len(r.buckets)
}

// bucket returns the bucket at index, falling back to bucket 0 for an
// out-of-range index. The fallback masks what should be an unreachable
// condition; bucket 0 always exists because the ring is never empty.
func (r *bucketRing) bucket(index int) map[Conn]struct{} {
	if index < 0 || index >= len(r.buckets) {
		return r.buckets[0]
	}
	return r.buckets[index]
}

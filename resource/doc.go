// Package resource exposes native resources to guest code through small
// integer handles.
//
// A Resource is any capability object with a name and a Close. Streams,
// sockets, files and channels additionally implement Reader, Writer or
// Shutdowner; embedding Base supplies defaults for the ones a resource
// does not support.
//
// # Handle Table
//
// Table maps IDs to live resources:
//
//	table := resource.NewTable()
//	rid := table.Add(conn)
//
//	// Borrow by type
//	c, err := resource.Get[*resource.FullDuplex](table, rid)
//
//	// Remove without closing (ownership moves to the caller)
//	c, err = resource.Take[*resource.FullDuplex](table, rid)
//
//	// Remove and close
//	err = table.Close(rid)
//
// An unknown ID yields errors.ErrBadResourceID and a resource of the
// wrong type yields errors.ErrBadResource. Neither is fatal. IDs are
// unique among live resources and reused after removal.
//
// # Cancellation
//
// Every FullDuplex owns a CancelHandle scoped to its read direction.
// Closing the resource fires it: a pending read resolves with no data,
// while a write already in progress is allowed to finish. Later
// operations fail with errors.ErrClosed.
//
// # Channels
//
// ChannelPair returns two connected in-memory ends backed by bounded
// lock-free SPSC queues. TryRead and TryWrite return iox.ErrWouldBlock
// instead of blocking; Read and Write wait with adaptive backoff; and
// ReadFuture integrates with the event loop's wakers.
package resource

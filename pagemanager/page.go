// Package pagemanager implements the fixed-size page allocator (component
// C1): a bounded supply of raw byte buffers with deferred free. The log
// subsystem (package glog) layers the append discipline and entry framing
// on top of the buffers handed out here.
package pagemanager

// Buffer is a raw, fixed-size page of memory. It carries no bump-append or
// linking state of its own -- that belongs to the log page (component C2).
type Buffer []byte

// Package cgraph implements a streaming compute graph: typed processing
// nodes connected by bounded multiple-producer, multiple-consumer
// channels.
//
// A node pulls messages from its input ports, applies a transformation
// and pushes results to its output ports. Ports are bound to mpmc
// channels: an output port holds a sender, an input port holds a
// consumer group of the upstream channel. Fan-out is expressed by
// attaching several broadcast groups to one channel, horizontal
// scale-out by running a node on several workers competing within one
// shared group.
//
// There is no scheduler. Producers block when the slowest consumer
// group of their channel is a full capacity behind, consumers block
// when no message is available. Shutdown is reached by closing the
// graph sources: closure propagates downstream as end-of-stream once
// buffered messages drain.
package cgraph

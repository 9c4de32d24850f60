// Package sampling turns accepted commands into paced sensor reads and
// publishes one formatted line per tick.
//
// Commands arrive on the transport goroutine through an Ingestor which parses
// them and appends a Job to a Queue. A single Sampler goroutine drains the
// queue in arrival order, so runs never overlap and a new command waits for
// the previous one to finish.
package sampling

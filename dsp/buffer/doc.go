// Package buffer provides fixed-capacity containers for rolling analysis
// state.
//
// [Ring] never grows after construction: pushing into a full ring evicts the
// oldest element. Loudness histories, rate-limiter timestamp windows and
// automation point queues are all built on it so steady-state processing
// performs no allocation.
package buffer

// Package rtcore is the protocol-agnostic core: router identity, the
// control-message envelope, the RIB/FIB, the neighbor table, the
// link-state database, and the Engine contract every protocol implements.
// Nothing here performs I/O or reads a real clock; both the simulator and
// the daemon runtime drive it from the outside.
package rtcore

import "strconv"

// RouterId is a dense small integer, unique within one run or deployment.
// String names from topology files are translated to RouterId by the
// (out-of-scope) loader before anything in this package sees them.
type RouterId int

func (id RouterId) String() string { return strconv.Itoa(int(id)) }

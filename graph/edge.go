package graph

// Edge is a fixed transition: after From completes, To always runs next.
//
// Fixed edges carry no runtime uncertainty. Only conditional nodes, whose
// next target comes from their own output, introduce branching.
type Edge struct {
	// From is the source node name.
	From string

	// To is the destination node name or a terminal sentinel.
	To string
}

// Branch is a conditional transition: From's own Update.Next selects the
// successor, which must be one of Targets.
type Branch struct {
	// From is the node whose output supplies the next target.
	From string

	// Targets lists the node names From may select. The terminal sentinels
	// are always legal and are added at compile time. Empty means every
	// other registered node.
	Targets []string
}

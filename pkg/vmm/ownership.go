package vmm

import "fmt"

// OwnershipKind distinguishes the three VmmOwnershipModel variants.
type OwnershipKind int

const (
	// OwnershipShared leaves host ownership of materialized resources
	// intact.
	OwnershipShared OwnershipKind = iota
	// OwnershipUpgraded sets in-jail uid/gid ownership on materialized
	// resources.
	OwnershipUpgraded
	// OwnershipUpgradedPermanently additionally strips host write access
	// once ownership is upgraded.
	OwnershipUpgradedPermanently
)

// VmmOwnershipModel dictates which side owns files the executor
// materializes into a jail: the host user, the in-jail user, or both
// transitively.
type VmmOwnershipModel struct {
	Kind OwnershipKind
	UID  int
	GID  int
}

func SharedOwnership(uid, gid int) VmmOwnershipModel {
	return VmmOwnershipModel{Kind: OwnershipShared, UID: uid, GID: gid}
}

func UpgradedOwnership(uid, gid int) VmmOwnershipModel {
	return VmmOwnershipModel{Kind: OwnershipUpgraded, UID: uid, GID: gid}
}

func UpgradedPermanentlyOwnership(uid, gid int) VmmOwnershipModel {
	return VmmOwnershipModel{Kind: OwnershipUpgradedPermanently, UID: uid, GID: gid}
}

// PathMapping pairs an outer (host) path with the inner (jail) path
// Firecracker will see. When unrestricted, Inner equals Outer.
type PathMapping struct {
	Outer string
	Inner string
}

// PathMap is a bijection between outer and inner paths, built incrementally
// by an executor's prepare step.
type PathMap struct {
	outerToInner map[string]string
	innerToOuter map[string]string
}

func NewPathMap() *PathMap {
	return &PathMap{
		outerToInner: map[string]string{},
		innerToOuter: map[string]string{},
	}
}

// Add records a mapping. It is an error (programmer bug) to map the same
// outer path twice to different inner paths.
func (m *PathMap) Add(mapping PathMapping) error {
	if existing, ok := m.outerToInner[mapping.Outer]; ok && existing != mapping.Inner {
		return fmt.Errorf("vmm: outer path %q already mapped to %q, cannot remap to %q", mapping.Outer, existing, mapping.Inner)
	}
	m.outerToInner[mapping.Outer] = mapping.Inner
	m.innerToOuter[mapping.Inner] = mapping.Outer
	return nil
}

// OuterPaths returns every outer path recorded so far, in no particular
// order; callers that need the original declaration order should track it
// themselves alongside the map.
func (m *PathMap) OuterPaths() []string {
	out := make([]string, 0, len(m.outerToInner))
	for outer := range m.outerToInner {
		out = append(out, outer)
	}
	return out
}

// InnerToOuter is the reverse lookup of the path map; ok is false if inner
// was never recorded.
func (m *PathMap) InnerToOuter(inner string) (outer string, ok bool) {
	outer, ok = m.innerToOuter[inner]
	return outer, ok
}

// OuterToInner is the forward lookup of the path map.
func (m *PathMap) OuterToInner(outer string) (inner string, ok bool) {
	inner, ok = m.outerToInner[outer]
	return inner, ok
}

// ResourceMoveKind governs how a caller-provided file is made visible
// inside the jail.
type ResourceMoveKind int

const (
	MoveCopy ResourceMoveKind = iota
	MoveHardLink
	MoveHardLinkOrCopy
	MoveRename
	MoveSymlink
)

func (k ResourceMoveKind) String() string {
	switch k {
	case MoveCopy:
		return "copy"
	case MoveHardLink:
		return "hard_link"
	case MoveHardLinkOrCopy:
		return "hard_link_or_copy"
	case MoveRename:
		return "rename"
	case MoveSymlink:
		return "symlink"
	default:
		return "unknown"
	}
}

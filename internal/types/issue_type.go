package types

// IssueType classifies what kind of work an atom represents.
type IssueType string

const (
	TypeTask     IssueType = "task"
	TypeBug      IssueType = "bug"
	TypeFeature  IssueType = "feature"
	TypeChore    IssueType = "chore"
	TypeArtifact IssueType = "artifact"
	TypeEpic     IssueType = "epic"
	TypeFormula  IssueType = "formula"
)

var validIssueTypes = map[IssueType]bool{
	TypeTask:     true,
	TypeBug:      true,
	TypeFeature:  true,
	TypeChore:    true,
	TypeArtifact: true,
	TypeEpic:     true,
	TypeFormula:  true,
}

// abstractIssueTypes are excluded from ready queries unless explicitly requested.
var abstractIssueTypes = map[IssueType]bool{
	TypeEpic:    true,
	TypeFormula: true,
}

// Valid reports whether t is one of the closed set of issue types.
func (t IssueType) Valid() bool {
	return validIssueTypes[t]
}

// IsAbstract reports whether atoms of this type are excluded from ready
// queries unless the caller explicitly asks to include abstract types.
func (t IssueType) IsAbstract() bool {
	return abstractIssueTypes[t]
}

// DependencyType is the kind of a directed edge (Bond) between two atoms.
type DependencyType string

const (
	DepBlocks            DependencyType = "blocks"
	DepParentChild        DependencyType = "parent_child"
	DepConditionalBlocks  DependencyType = "conditional_blocks"
	DepWaitsFor           DependencyType = "waits_for"
	DepRelated            DependencyType = "related"
	DepDuplicates         DependencyType = "duplicates"
	DepDiscoveredFrom     DependencyType = "discovered_from"
	DepRepliesTo          DependencyType = "replies_to"
)

var validDependencyTypes = map[DependencyType]bool{
	DepBlocks:           true,
	DepParentChild:      true,
	DepConditionalBlocks: true,
	DepWaitsFor:          true,
	DepRelated:           true,
	DepDuplicates:        true,
	DepDiscoveredFrom:    true,
	DepRepliesTo:         true,
}

// blockingDependencyTypes are the edge kinds that participate in readiness.
var blockingDependencyTypes = map[DependencyType]bool{
	DepBlocks:           true,
	DepParentChild:      true,
	DepConditionalBlocks: true,
	DepWaitsFor:          true,
}

// Valid reports whether t is one of the closed set of dependency types.
func (t DependencyType) Valid() bool {
	return validDependencyTypes[t]
}

// IsBlocking reports whether bonds of this type participate in the
// blocking subgraph used for cycle detection and readiness (spec.md §4.5).
func (t DependencyType) IsBlocking() bool {
	return blockingDependencyTypes[t]
}

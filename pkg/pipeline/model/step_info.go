package model

import "strconv"

type nodeKind string

// Kinds of lineage nodes.
const (
	FileNode     nodeKind = "file"
	DatagramNode nodeKind = "datagram"
	TableNode    nodeKind = "table"
)

// Node is an object read or written by an instruction.
type Node struct {
	Kind nodeKind
	Name string
}

// ID is the unique name of the node in the lineage graph.
func (n Node) ID() string {
	if n.Kind == FileNode {
		return "file:" + n.Name
	}

	return n.Name
}

// StepInfo describes one recipe instruction.
type StepInfo struct {
	Stage   string
	Index   int
	Inputs  []Node
	Outputs []Node
}

// Name is the stage and index of the instruction, e.g. "transform[2]".
func (s *StepInfo) Name() string {
	return s.Stage + "[" + strconv.Itoa(s.Index) + "]"
}

package drawer

import (
	"time"

	"github.com/askiada/dgflow/pkg/pipeline/measure"
	"github.com/askiada/dgflow/pkg/pipeline/model"
)

// Drawer is an interface that defines the methods for drawing the lineage of a run.
type Drawer interface {
	// AddNode adds an object to the lineage graph. Adding a node twice is not an error.
	AddNode(node model.Node) error
	// AddLink adds the instruction named label between parent and child.
	AddLink(parentName, childName, label string) error
	// Draw writes the graph.
	Draw() error
	// SetTotalTime sets the total run time.
	SetTotalTime(totalTime time.Duration) error
	// AddMeasure adds a measure to the drawer.
	AddMeasure(measure measure.Measure) error
}

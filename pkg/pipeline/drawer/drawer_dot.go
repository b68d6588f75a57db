package drawer

import (
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
	"text/template"
	"time"

	"github.com/dominikbraun/graph"
	"github.com/pkg/errors"
	"gopkg.in/go-playground/colors.v1" //nolint

	"github.com/askiada/dgflow/internal/store"
	"github.com/askiada/dgflow/pkg/pipeline/measure"
	"github.com/askiada/dgflow/pkg/pipeline/model"
)

func shape(n model.Node) string {
	switch n.Kind {
	case model.FileNode:
		return "note"
	case model.DatagramNode:
		return "cylinder"
	default:
		return "box"
	}
}

// DOTDrawer writes the lineage graph in the Graphviz DOT language.
type DOTDrawer struct {
	graph    graph.Graph[string, string]
	store    store.CustomStore[string, string]
	fileName string
	out      io.Writer
	total    string
}

// NewDOTDrawer creates a drawer writing to fileName.
func NewDOTDrawer(fileName string) *DOTDrawer {
	s := store.NewMemoryStore[string, string]()

	return &DOTDrawer{
		fileName: fileName,
		store:    s,
		graph:    graph.NewWithStore(graph.StringHash, s, graph.Directed()),
	}
}

// NewDOTWriter creates a drawer writing to w.
func NewDOTWriter(w io.Writer) *DOTDrawer {
	d := NewDOTDrawer("")
	d.out = w

	return d
}

// AddNode adds an object to the lineage graph.
func (d *DOTDrawer) AddNode(node model.Node) error {
	err := d.graph.AddVertex(node.ID(), graph.VertexAttribute("shape", shape(node)))
	if errors.Is(err, graph.ErrVertexAlreadyExists) {
		return nil
	}
	if err != nil {
		return errors.Wrap(err, "unable to add vertex")
	}

	return nil
}

// AddLink adds an instruction between parent and child. Instructions
// sharing the same endpoints are listed on one edge.
func (d *DOTDrawer) AddLink(parentName, childName, label string) error {
	edge, err := d.graph.Edge(parentName, childName)
	if err == nil {
		if old := edge.Properties.Attributes["label"]; old != "" {
			label = old + ", " + label
		}
		err = d.graph.UpdateEdge(parentName, childName, graph.EdgeAttribute("label", label))
		if err != nil {
			return errors.Wrapf(err, "unable to update edge from %s to %s", parentName, childName)
		}

		return nil
	}

	err = d.graph.AddEdge(parentName, childName, graph.EdgeAttribute("label", label))
	if err != nil {
		return errors.Wrapf(err, "unable to add edge from %s to %s", parentName, childName)
	}

	return nil
}

// Draw writes the graph to the configured file or writer.
func (d *DOTDrawer) Draw() error {
	if d.out != nil {
		return d.WriteDOT(d.out)
	}

	file, err := os.Create(d.fileName)
	if err != nil {
		return errors.Wrapf(err, "unable to create file %s", d.fileName)
	}
	defer file.Close()

	err = d.WriteDOT(file)
	if err != nil {
		return errors.Wrapf(err, "unable to create dot file %s", d.fileName)
	}

	return nil
}

// WriteDOT writes the graph to w.
func (d *DOTDrawer) WriteDOT(w io.Writer) error {
	desc, err := d.generateDOT()
	if err != nil {
		return errors.Wrap(err, "unable to generate DOT description")
	}

	return renderDOT(w, desc)
}

// SetTotalTime labels the graph with the run time.
func (d *DOTDrawer) SetTotalTime(totalTime time.Duration) error {
	d.total = measure.Round(totalTime).String()

	return nil
}

const maxRGB = 240

// AddMeasure colours every edge by its measured duration, from blue for the
// fastest to red for the slowest, and labels nodes with their timings.
func (d *DOTDrawer) AddMeasure(msr measure.Measure) error {
	allElapsed := make(map[time.Duration]string)
	sortedElapsed := []time.Duration{}

	for _, mt := range msr.AllMetrics() {
		for _, info := range mt.AllTransports() {
			if info.Elapsed == 0 {
				continue
			}
			if _, ok := allElapsed[info.Elapsed]; ok {
				continue
			}
			allElapsed[info.Elapsed] = ""
			sortedElapsed = append(sortedElapsed, info.Elapsed)
		}
	}

	sort.Slice(sortedElapsed, func(i, j int) bool {
		return sortedElapsed[i] > sortedElapsed[j]
	})

	if len(sortedElapsed) > 0 {
		maxValue := sortedElapsed[0]
		minValue := sortedElapsed[len(sortedElapsed)-1]
		for curr := range allElapsed {
			fraction := 1.0
			if maxValue > minValue {
				fraction = float64(curr-minValue) / float64(maxValue-minValue)
			}

			red := maxRGB * fraction
			blue := maxRGB - red

			color, err := colors.RGB(uint8(red), 0, uint8(blue)) //nolint
			if err != nil {
				return errors.Wrap(err, "unable to get colour")
			}

			allElapsed[curr] = color.ToHEX().String()
		}
	}

	err := d.updateMetrics(msr, allElapsed)
	if err != nil {
		return errors.Wrap(err, "unable to update metrics")
	}

	return nil
}

func (d *DOTDrawer) updateMetrics(msr measure.Measure, allElapsed map[time.Duration]string) error {
	for name, mt := range msr.AllMetrics() {
		var xlabel []string
		if avg := mt.AVGDuration(); avg != 0 {
			xlabel = append(xlabel, avg.String())
		}
		if end := mt.GetTotalDuration(); end > 0 {
			xlabel = append(xlabel, "end: "+measure.Round(end).String())
		}
		if len(xlabel) > 0 {
			err := d.store.UpdateVertex(name, func(p *graph.VertexProperties) {
				p.Attributes["xlabel"] = strings.Join(xlabel, ", ")
			})
			if err != nil {
				return errors.Wrapf(err, "unable to update vertex %s", name)
			}
		}

		for input, info := range mt.AllTransports() {
			if info.Elapsed == 0 {
				continue
			}
			edge, err := d.graph.Edge(input, name)
			if err != nil {
				return errors.Wrapf(err, "unable to get edge from %s to %s", input, name)
			}

			err = d.graph.UpdateEdge(input, name,
				graph.EdgeAttribute("label", edge.Properties.Attributes["label"]+" ("+measure.Round(info.Elapsed).String()+")"),
				graph.EdgeAttribute("fontcolor", "blue"),
				graph.EdgeAttribute("color", allElapsed[info.Elapsed]), //nolint
			)
			if err != nil {
				return errors.Wrap(err, "unable to update edge")
			}
		}
	}

	return nil
}

//nolint:lll //this is a template
const dotTemplate = `strict {{.GraphType}} {
	{{range $k, $v := .Attributes}}
		{{$k}}={{quote $v}};
	{{end}}
	{{range $s := .Statements}}
		{{quote .Source}} {{if .Target}}{{$.EdgeOperator}} {{quote .Target}} [ {{range $k, $v := .EdgeAttributes}}{{$k}}={{quote $v}}, {{end}} weight={{.EdgeWeight}} ]{{else}}[ {{range $k, $v := .SourceAttributes}}{{$k}}={{quote $v}}, {{end}} weight={{.SourceWeight}} ]{{end}};
	{{end}}
	}
	`

type description struct {
	GraphType    string
	Attributes   map[string]string
	EdgeOperator string
	Statements   []statement
}

type statement struct {
	Source           string
	Target           string
	SourceAttributes map[string]string
	EdgeAttributes   map[string]string
	SourceWeight     int
	EdgeWeight       int
}

// generateDOT lists every vertex followed by its outgoing edges, both in
// insertion order.
func (d *DOTDrawer) generateDOT() (description, error) {
	desc := description{
		GraphType:    "digraph",
		Attributes:   map[string]string{"rankdir": "LR"},
		EdgeOperator: "->",
		Statements:   make([]statement, 0),
	}
	if d.total != "" {
		desc.Attributes["label"] = "total: " + d.total
	}

	vertices, err := d.store.ListVertices()
	if err != nil {
		return desc, errors.Wrap(err, "unable to list vertices")
	}
	edges, err := d.store.ListEdges()
	if err != nil {
		return desc, errors.Wrap(err, "unable to list edges")
	}
	outgoing := make(map[string][]graph.Edge[string])
	for _, e := range edges {
		outgoing[e.Source] = append(outgoing[e.Source], e)
	}

	for _, vertex := range vertices {
		_, properties, err := d.store.Vertex(vertex)
		if err != nil {
			return desc, errors.Wrap(err, "unable to get vertex properties")
		}

		desc.Statements = append(desc.Statements, statement{
			Source:           vertex,
			SourceWeight:     properties.Weight,
			SourceAttributes: properties.Attributes,
		})

		for _, edge := range outgoing[vertex] {
			desc.Statements = append(desc.Statements, statement{
				Source:         vertex,
				Target:         edge.Target,
				EdgeWeight:     edge.Properties.Weight,
				EdgeAttributes: edge.Properties.Attributes,
			})
		}
	}

	return desc, nil
}

func renderDOT(wrt io.Writer, desc description) error {
	tpl, err := template.New("dotTemplate").Funcs(template.FuncMap{"quote": strconv.Quote}).Parse(dotTemplate)
	if err != nil {
		return errors.Wrap(err, "failed to parse template")
	}

	err = tpl.Execute(wrt, desc)
	if err != nil {
		return errors.Wrap(err, "unable to execute template")
	}

	return nil
}

var _ Drawer = (*DOTDrawer)(nil)

package graph

import (
	"fmt"
	"strings"

	"github.com/aretw0/lattice/internal/runtime"
	"github.com/aretw0/lattice/pkg/domain"
)

// EndNode is the terminal node every completing path points to.
const EndNode = "done"

// Overlay marks a run's position on the graph.
type Overlay struct {
	SectionID string
	StepID    string
}

// GenerateMermaid renders an activity as a Mermaid flowchart. Sections become
// subgraphs, the entry step is a circle and question steps are parallelograms.
// Bucket transitions are labelled with the bucket; branch chains are dotted.
func GenerateMermaid(def *domain.ActivityDefinition, overlay *Overlay) string {
	var sb strings.Builder
	sb.WriteString("graph TD\n")

	for i, sec := range def.Sections {
		fmt.Fprintf(&sb, "    subgraph %s[\"%s\"]\n", nodeID("section", sec.ID), escape(title(sec.Title, sec.ID)))
		for j, st := range sec.Steps {
			opener, closer := "[", "]"
			switch {
			case i == 0 && j == 0:
				opener, closer = "((", "))"
			case st.HasQuestion():
				opener, closer = "[/", "/]"
			}
			fmt.Fprintf(&sb, "        %s%s\"%s\"%s\n", nodeID(sec.ID, st.ID), opener, escape(title(st.Title, st.ID)), closer)
		}
		sb.WriteString("    end\n")
	}
	fmt.Fprintf(&sb, "    %s(((\"%s\")))\n", EndNode, EndNode)

	for _, sec := range def.Sections {
		for _, st := range sec.Steps {
			writeEdges(&sb, def, sec.ID, &st)
		}
	}

	if overlay != nil && overlay.StepID != "" {
		sb.WriteString("\n    %% Overlay Styles\n")
		sb.WriteString("    classDef current fill:#ffeb3b,stroke:#fbc02d,stroke-width:4px,color:#000;\n")
		fmt.Fprintf(&sb, "    class %s current;\n", nodeID(overlay.SectionID, overlay.StepID))
	}
	return sb.String()
}

func writeEdges(sb *strings.Builder, def *domain.ActivityDefinition, sectionID string, st *domain.Step) {
	from := nodeID(sectionID, st.ID)
	next := structuralNext(def, sectionID, st.ID)

	if !st.HasQuestion() {
		fmt.Fprintf(sb, "    %s --> %s\n", from, next)
		return
	}
	for _, label := range st.Buckets {
		tr, ok := st.Transitions[label]
		if !ok {
			continue
		}
		name := escape(label.String())
		switch {
		case tr.Next.IsZero() && runtime.NonAdvancing[label.String()]:
			fmt.Fprintf(sb, "    %s -- \"%s\" --> %s\n", from, name, from)
		case tr.Next.IsZero():
			fmt.Fprintf(sb, "    %s -- \"%s\" --> %s\n", from, name, next)
		case tr.Next.Target != "":
			fmt.Fprintf(sb, "    %s -- \"%s\" --> %s\n", from, name, targetID(tr.Next.Target))
		default:
			for _, b := range tr.Next.Branches {
				if b.Goto == "" {
					continue
				}
				fmt.Fprintf(sb, "    %s -. \"%s (%s)\" .-> %s\n", from, name, b.Kind, targetID(b.Goto))
			}
		}
	}
}

func structuralNext(def *domain.ActivityDefinition, sectionID, stepID string) string {
	sec, st, ok := def.Next(sectionID, stepID)
	if !ok {
		return EndNode
	}
	return nodeID(sec.ID, st.ID)
}

func targetID(target string) string {
	sectionID, stepID, err := domain.ParseTarget(target)
	if err != nil {
		return sanitizeMermaidID(target)
	}
	return nodeID(sectionID, stepID)
}

func nodeID(sectionID, stepID string) string {
	return sanitizeMermaidID(sectionID + "__" + stepID)
}

func title(t, fallback string) string {
	if t == "" {
		return fallback
	}
	return t
}

func escape(s string) string {
	return strings.ReplaceAll(s, "\"", "'")
}

func sanitizeMermaidID(id string) string {
	s := strings.ReplaceAll(id, ".", "_")
	s = strings.ReplaceAll(s, "-", "_")
	s = strings.ReplaceAll(s, "/", "_")
	s = strings.ReplaceAll(s, "\\", "_")
	s = strings.ReplaceAll(s, " ", "_")
	s = strings.ReplaceAll(s, ":", "_")
	return s
}

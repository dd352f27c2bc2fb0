package rig

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/Faultbox/nitro-rig/internal/skeleton"
)

// Report summarizes a Result for output.
type Report struct {
	RunID string `yaml:"run_id"`
	Model string `yaml:"model"`
	Path  string `yaml:"path,omitempty"`

	Objects   int `yaml:"objects"`
	Meshes    int `yaml:"meshes"`
	Materials int `yaml:"materials"`

	Joints           int         `yaml:"joints"`
	MaxInfluences    int         `yaml:"max_influences"`
	InfluenceCounts  map[int]int `yaml:"influence_counts"` // influences per vertex -> vertices
	UnusualMatrices  bool        `yaml:"unusual_matrices"`
	SingularMatrices int         `yaml:"singular_matrices"`

	PolyType  string     `yaml:"poly_type"`
	Vertices  int        `yaml:"vertices"`
	Indices   int        `yaml:"indices"`
	DrawCalls int        `yaml:"draw_calls"`
	BoundsMin [3]float32 `yaml:"bounds_min,flow"`
	BoundsMax [3]float32 `yaml:"bounds_max,flow"`

	Tree []JointReport `yaml:"tree"`
}

// JointReport is one joint of the tree, in depth-first order.
type JointReport struct {
	ID     int    `yaml:"id"`
	Name   string `yaml:"name"`
	Parent int    `yaml:"parent"` // -1 for the root
	Depth  int    `yaml:"depth"`
}

// NewReport summarizes res.
func NewReport(res *Result, runID string) *Report {
	skel := res.Skeleton
	prims := res.Primitives

	r := &Report{
		RunID:            runID,
		Model:            res.Model.Name,
		Path:             res.Path,
		Objects:          len(res.Model.Objects),
		Meshes:           len(res.Model.Meshes),
		Materials:        len(res.Model.Materials),
		Joints:           skel.Tree.Len(),
		MaxInfluences:    skel.MaxNumInfluences,
		InfluenceCounts:  make(map[int]int),
		UnusualMatrices:  skel.UnusualMatrices,
		SingularMatrices: skel.SingularMatrices,
		PolyType:         prims.PolyType.String(),
		Vertices:         len(prims.Vertices),
		Indices:          len(prims.Indices),
		DrawCalls:        len(prims.DrawCalls),
		BoundsMin:        prims.Bounds.Min,
		BoundsMax:        prims.Bounds.Max,
	}
	for _, v := range skel.Vertices {
		r.InfluenceCounts[len(v.Influences)]++
	}

	skel.Tree.Walk(skel.Root, func(id skeleton.JointID, depth int) bool {
		j := skel.Tree.Joint(id)
		r.Tree = append(r.Tree, JointReport{
			ID:     int(id),
			Name:   skeleton.JointName(res.Model, j),
			Parent: int(j.Parent),
			Depth:  depth,
		})
		return true
	})
	return r
}

// WriteReport writes r as YAML to dir/<model>.yaml and returns the path.
func WriteReport(dir string, r *Report) (string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create report directory: %w", err)
	}

	data, err := yaml.Marshal(r)
	if err != nil {
		return "", fmt.Errorf("failed to marshal report: %w", err)
	}

	path := filepath.Join(dir, reportFileName(r.Model))
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write report: %w", err)
	}
	return path, nil
}

// reportFileName makes a model name safe to use as a file name.
func reportFileName(model string) string {
	name := strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', 0:
			return '_'
		}
		return r
	}, model)
	if name == "" || name == "." || name == ".." {
		name = "model"
	}
	return name + ".yaml"
}

// PrintSummary writes a one-paragraph summary of r.
func PrintSummary(w io.Writer, r *Report) {
	fmt.Fprintf(w, "Model:      %s\n", r.Model)
	fmt.Fprintf(w, "Joints:     %d (max %d influences per vertex)\n", r.Joints, r.MaxInfluences)
	fmt.Fprintf(w, "Vertices:   %d\n", r.Vertices)
	fmt.Fprintf(w, "Indices:    %d (%s)\n", r.Indices, r.PolyType)
	fmt.Fprintf(w, "Draw calls: %d\n", r.DrawCalls)
	if r.UnusualMatrices {
		fmt.Fprintln(w, "Warning:    unusual vertex matrices, skinning may be imperfect")
	}
	if r.SingularMatrices > 0 {
		fmt.Fprintf(w, "Warning:    %d singular rest matrices\n", r.SingularMatrices)
	}
}

// PrintTree writes the joint tree of r, one joint per line, indented by
// depth.
func PrintTree(w io.Writer, r *Report) {
	for _, j := range r.Tree {
		fmt.Fprintf(w, "%s%s [%d]\n", strings.Repeat("  ", j.Depth), j.Name, j.ID)
	}
}

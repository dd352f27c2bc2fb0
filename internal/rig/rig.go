// Package rig runs the full pipeline on model files: load, recover the
// skeleton, build rest-pose primitives and report on the result.
package rig

import (
	"fmt"

	"github.com/Faultbox/nitro-rig/internal/config"
	"github.com/Faultbox/nitro-rig/internal/modelfile"
	"github.com/Faultbox/nitro-rig/internal/primitives"
	"github.com/Faultbox/nitro-rig/internal/skeleton"
	"github.com/Faultbox/nitro-rig/pkg/nitro"
)

// Result is everything built from one model.
type Result struct {
	Path       string
	Model      *nitro.Model
	Record     *skeleton.VertexRecord
	Skeleton   *skeleton.Skeleton
	Primitives *primitives.Primitives
}

// Process loads the model file at path and builds it.
func Process(path string, cfg config.BuildConfig) (*Result, error) {
	model, err := modelfile.Load(path)
	if err != nil {
		return nil, err
	}
	res, err := Build(model, cfg)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	res.Path = path
	return res, nil
}

// Build recovers the skeleton of a validated model and builds its rest-pose
// primitives.
func Build(model *nitro.Model, cfg config.BuildConfig) (*Result, error) {
	polyType, err := PolyType(cfg.PolyType)
	if err != nil {
		return nil, err
	}

	rest := model.RestPose()
	vr := skeleton.BuildVertexRecord(model)
	skel := skeleton.BuildSkeleton(vr, model, rest)

	prims := primitives.Build(model, polyType, primitives.DynamicState{Objects: rest})
	if cfg.EncodeNgons {
		prims = primitives.EncodeNgons(prims)
	}

	if prims.DroppedDraws > 0 {
		return nil, fmt.Errorf("model %q: %w: %d draws dropped",
			model.Name, primitives.ErrTooManyVertices, prims.DroppedDraws)
	}
	if len(vr.Vertices) != len(prims.Vertices) {
		return nil, fmt.Errorf("model %q: skin has %d vertices but primitives have %d",
			model.Name, len(vr.Vertices), len(prims.Vertices))
	}

	return &Result{
		Model:      model,
		Record:     vr,
		Skeleton:   skel,
		Primitives: prims,
	}, nil
}

// PolyType maps a config poly type name to its primitives value.
func PolyType(name string) (primitives.PolyType, error) {
	switch name {
	case config.PolyTris:
		return primitives.PolyTypeTris, nil
	case config.PolyTrisAndQuads:
		return primitives.PolyTypeTrisAndQuads, nil
	}
	return 0, fmt.Errorf("%w: poly_type %q", config.ErrInvalidConfig, name)
}

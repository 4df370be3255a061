package main

import (
	"strconv"
	"strings"

	"github.com/gomlx/dtensor/placements"
	"github.com/pkg/errors"
)

// parseMeshDims parses a mesh grid spec like "4" or "2x4" into per-axis extents.
func parseMeshDims(s string) ([]int, error) {
	parts := strings.Split(s, "x")
	dims := make([]int, 0, len(parts))
	for _, part := range parts {
		dim, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			return nil, errors.Wrapf(err, "invalid mesh spec %q", s)
		}
		dims = append(dims, dim)
	}
	return dims, nil
}

// parseIntList parses a comma-separated list of ints like "10,3". An empty string is
// a valid empty list (a scalar shape, or no explicit ranks).
func parseIntList(s string) ([]int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	values := make([]int, 0, len(parts))
	for _, part := range parts {
		v, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			return nil, errors.Wrapf(err, "invalid int list %q", s)
		}
		values = append(values, v)
	}
	return values, nil
}

// parseAxisNames parses a comma-separated list of mesh axis names, "" meaning
// unnamed axes.
func parseAxisNames(s string) []string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	names := strings.Split(s, ",")
	for ii := range names {
		names[ii] = strings.TrimSpace(names[ii])
	}
	return names
}

// parsePlacements parses a comma-separated placements spec, one entry per mesh axis:
//
//   - "replicate" (or "r")
//   - "shard(D)" (or "s(D)"), D a tensor dimension
//   - "partial" or "partial(OP)", OP one of sum, product, max, min
//
// Matching is case-insensitive.
func parsePlacements(s string) ([]placements.Placement, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	placs := make([]placements.Placement, 0, len(parts))
	for _, part := range parts {
		p, err := parsePlacement(strings.TrimSpace(part))
		if err != nil {
			return nil, err
		}
		placs = append(placs, p)
	}
	return placs, nil
}

func parsePlacement(s string) (placements.Placement, error) {
	name, arg := s, ""
	if open := strings.IndexByte(s, '('); open >= 0 {
		if !strings.HasSuffix(s, ")") {
			return nil, errors.Errorf("invalid placement %q: missing closing parenthesis", s)
		}
		name, arg = s[:open], s[open+1:len(s)-1]
	}
	switch strings.ToLower(name) {
	case "replicate", "r":
		if arg != "" {
			return nil, errors.Errorf("invalid placement %q: replicate takes no argument", s)
		}
		return placements.Replicate{}, nil
	case "shard", "s":
		dim, err := strconv.Atoi(arg)
		if err != nil {
			return nil, errors.Errorf("invalid placement %q: shard requires a tensor dimension, e.g. shard(0)", s)
		}
		return placements.Shard{Dim: dim}, nil
	case "partial", "p":
		if arg == "" {
			return placements.Partial{}, nil
		}
		op, err := placements.ReduceOpTypeString(arg)
		if err != nil {
			return nil, errors.Errorf("invalid placement %q: unknown reduce op %q", s, arg)
		}
		return placements.Partial{Op: op}, nil
	}
	return nil, errors.Errorf("unknown placement %q: want replicate, shard(D) or partial[(OP)]", s)
}

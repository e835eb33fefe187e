// Package keyexpr implements the key-expression engine (spec.md §4.3,
// component C): canonicalization of the path-like wildcard grammar and
// intersection matching between two canonical expressions.
/*
 * Copyright (c) 2018-2023, NVIDIA CORPORATION. All rights reserved.
 */
package keyexpr

import (
	"strings"

	"github.com/zenoh-go/zenoh-lite/cmn/cos"
)

// Canonicalize validates and rewrites a key expression into its canonical
// string form. Leading/trailing slashes are stripped; inner empty chunks are
// rejected; bare '$', '#', '?' are rejected; a chunk may be "**" (matching
// zero or more chunks) or a literal possibly containing '*' wildcards (each
// '*' matches zero or more characters within the chunk, never crossing a
// '/'); consecutive "**" chunks collapse to one.
func Canonicalize(s string) (string, error) {
	chunks, err := split(s)
	if err != nil {
		return "", err
	}
	chunks = mergeDoubleStars(chunks)
	return strings.Join(chunks, "/"), nil
}

// split parses s into its chunk list, validating grammar along the way. An
// empty key expression (s == "" or s == "/") parses to a zero-length chunk
// list, distinct from a single chunk containing the empty string: bare "*"
// never matches a zero-chunk expression (spec.md §8 "/*" vs "/"), while "**"
// does, since it stands for zero or more chunks.
func split(s string) ([]string, error) {
	s = strings.Trim(s, "/")
	if s == "" {
		return nil, nil
	}
	raw := strings.Split(s, "/")
	chunks := make([]string, len(raw))
	for i, c := range raw {
		if c == "" {
			return nil, cos.NewCodecErr(cos.Malformed, "keyexpr: empty chunk in %q", s)
		}
		if err := validateChunk(c); err != nil {
			return nil, err
		}
		chunks[i] = c
	}
	return chunks, nil
}

func validateChunk(c string) error {
	if c == "**" {
		return nil
	}
	if strings.Contains(c, "**") {
		return cos.NewCodecErr(cos.Malformed, "keyexpr: %q mixes ** with other characters", c)
	}
	for i := 0; i < len(c); i++ {
		switch c[i] {
		case '#', '?':
			return cos.NewCodecErr(cos.Malformed, "keyexpr: chunk %q contains %q", c, string(c[i]))
		case '$':
			if i+1 >= len(c) || c[i+1] != '*' {
				return cos.NewCodecErr(cos.Malformed, "keyexpr: unbound $ in chunk %q", c)
			}
		}
	}
	return nil
}

func mergeDoubleStars(chunks []string) []string {
	out := chunks[:0:0]
	for _, c := range chunks {
		if c == "**" && len(out) > 0 && out[len(out)-1] == "**" {
			continue
		}
		out = append(out, c)
	}
	return out
}

// Intersects reports whether there exists at least one concrete path matched
// by both key expressions. Both arguments are canonicalized internally, so
// callers may pass either raw or already-canonical strings.
func Intersects(a, b string) bool {
	ac, err := Canonicalize(a)
	if err != nil {
		return false
	}
	bc, err := Canonicalize(b)
	if err != nil {
		return false
	}
	achunks, _ := split(ac)
	bchunks, _ := split(bc)
	return intersectChunks(achunks, bchunks)
}

func intersectChunks(a, b []string) bool {
	if len(a) == 0 && len(b) == 0 {
		return true
	}
	if len(a) == 0 {
		return allDoubleStar(b)
	}
	if len(b) == 0 {
		return allDoubleStar(a)
	}
	if a[0] == "**" {
		return intersectChunks(a[1:], b) || intersectChunks(a, b[1:])
	}
	if b[0] == "**" {
		return intersectChunks(a, b[1:]) || intersectChunks(a[1:], b)
	}
	return chunkIntersects(a[0], b[0]) && intersectChunks(a[1:], b[1:])
}

func allDoubleStar(chunks []string) bool {
	for _, c := range chunks {
		if c != "**" {
			return false
		}
	}
	return true
}

// chunkIntersects decides whether two single-chunk patterns (each a literal
// string possibly containing '*' wildcards, no '/') share a common concrete
// match. A chunk-level '*' matches zero or more characters; a bare chunk
// cannot itself be empty, so unlike the chunk-list case an empty pattern
// here ("" on either side, which only ever arises from the recursion's own
// base cases) still requires the other side to be all stars.
func chunkIntersects(a, b string) bool {
	memo := make(map[[2]int]bool)
	var rec func(i, j int) bool
	rec = func(i, j int) bool {
		key := [2]int{i, j}
		if v, ok := memo[key]; ok {
			return v
		}
		var res bool
		switch {
		case i == len(a) && j == len(b):
			res = true
		case i == len(a):
			res = allStarRunes(b[j:])
		case j == len(b):
			res = allStarRunes(a[i:])
		case a[i] == '*':
			res = rec(i+1, j) || rec(i, j+1)
		case b[j] == '*':
			res = rec(i, j+1) || rec(i+1, j)
		default:
			res = a[i] == b[j] && rec(i+1, j+1)
		}
		memo[key] = res
		return res
	}
	return rec(0, 0)
}

func allStarRunes(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] != '*' {
			return false
		}
	}
	return true
}

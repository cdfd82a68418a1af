// Package quarkgl provides a minimal, predictable software 3D engine for the panel.
//
// QuarkGL is intended for visualization: a node graph of meshes and line sets,
// a perspective camera, and interactive orbit/zoom/pan. It is not a game engine
// and does not provide a GPU abstraction.
//
// Pipeline (fixed):
//
//	Node graph → World transform → Projection → Clipping → Rasterization → Frame output.
//
// The renderer is software-only and draws into a caller-provided Target. It
// avoids allocations in the render hot path: world matrices are carried by value
// while walking the graph.
//
// Resources:
//
// Geometry and Material values hold the buffers a frame reads. Both have an
// idempotent Dispose; DisposeObject visits a whole subgraph and disposes every
// resource it finds. LiveResources counts what is still held in a subgraph.
package quarkgl

// Package formats reads and writes the files the rig tools exchange: the
// YAML scene document and Wavefront OBJ reference meshes.
package formats

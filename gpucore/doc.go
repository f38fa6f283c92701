// Package gpucore defines the GPU device abstraction used by the atlas map
// renderer.
//
// The renderer algorithms (atlas packing, tile upload, sky and map stages)
// are written once against the [Device] and [PassEncoder] interfaces, while
// thin adapters translate them to a concrete API:
//
//	               +------------------+
//	               |  atlas.Renderer  |
//	               +--------+---------+
//	                        |
//	               +--------v---------+
//	               |  gpucore.Device  |
//	               +--------+---------+
//	                        |
//	         +--------------+--------------+
//	         |                             |
//	+--------v--------+          +--------v--------+
//	| backend/native  |          |    recording    |
//	|  (wgpu HAL)     |          |  (in-memory)    |
//	+-----------------+          +-----------------+
//
// # Resource Management
//
// GPU resources are referenced via opaque IDs ([BufferID], [TextureID], etc.).
// Devices own the mapping between IDs and backend resources; [InvalidID] never
// names a live resource. A texture binding with [InvalidID] is legal and binds
// a backend-provided placeholder, which lets the map stage keep a fixed
// binding layout when a layer has no data for a tile.
package gpucore

// Package atlas implements the standard atlasmap backend: tiles packed into
// shared atlas textures and drawn as a sky plane followed by one textured
// patch per visible tile.
//
// # Texture pools
//
// Uploaded tiles are grouped into pools by layer, tile size, texel format
// and mip level count. Each pool owns up to Config.MaxAtlasTexturesPerPool
// square atlas textures divided into equal slots. A slot holds the tile
// surrounded by Config.AtlasPadding texels of replicated edge, which keeps
// bilinear and mipmapped sampling from bleeding across neighbors. When a
// pool is full, or atlases are disabled, the tile gets a standalone
// texture instead.
//
// Atlas mip chains stop at the level where a slot edge is no longer a
// whole number of texels, so a 256 texel tile with 4 texels of padding
// gets 4 levels.
//
// # Frame structure
//
// Every frame clears the target to the sky color, draws the sky plane
// without depth testing and then draws the visible tiles farthest first
// with depth testing and alpha blending. Each tile draw binds the
// elevation texture (vertex stage) and four raster textures (fragment
// stage); layers without data are bound with a zero blend weight.
//
// # Usage
//
//	dev := recording.NewDevice() // or a native device
//	r := atlasmap.NewRenderer(atlasmap.WithBackend(atlas.New(dev, atlas.DefaultConfig())))
//	if err := r.InitializeRendering(ctx); err != nil {
//	    return err
//	}
//	defer r.ReleaseRendering()
package atlas

package imageloader

import (
	"github.com/tatwood-go/assetpipe/adapter"
	"github.com/tatwood-go/assetpipe/asset"
	"github.com/tatwood-go/assetpipe/keys"
	"github.com/tatwood-go/assetpipe/storage"
)

// typeKey is the TGA extension's type key, generated the same way
// tgaasset_register_storage hard-codes taa_asset_gen_typekey("tga").
var typeKey = keys.TypeKeyOf("tga")

// Manager bundles a generic Adapter[Texture] with the TGA Decode function
// wired in, the Go counterpart of tgaasset_mgr bundling a cache, a map,
// and the texture-specific parse callback into one handle.
type Manager struct {
	*adapter.Adapter[Texture]
}

// New creates a Manager whose underlying Adapter[Texture] pins up to
// cacheSize decoded textures and can hold registryCapacityHint entries
// before its registry needs to grow.
func New(cacheSize, registryCapacityHint int, stor *storage.Storage, queue asset.Pusher, opts ...adapter.Option[Texture]) *Manager {
	return &Manager{Adapter: adapter.New[Texture](cacheSize, registryCapacityHint, stor, queue, Decode, opts...)}
}

// RegisterGroup registers every ".tga" file in group, the Go equivalent of
// tgaasset_register_storage.
func (m *Manager) RegisterGroup(group *asset.StorageGroup) {
	m.Adapter.RegisterGroup(group, typeKey)
}

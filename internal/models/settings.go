package models

import "github.com/goccy/go-json"

// Texture formats understood by the helper script.
const (
	TextureFormatOriginal = "original"
	TextureFormatWebP     = "webp"
	TextureFormatKTX2     = "ktx2"
)

// Settings is the optimization document the helper script reads. The service
// only builds it for requests that arrive without a config; caller supplied
// configs are passed through as-is.
type Settings struct {
	Draco          bool   `json:"draco"`
	Meshopt        bool   `json:"meshopt"`
	Quantize       bool   `json:"quantize"`
	TextureFormat  string `json:"textureFormat"`
	MaxTextureSize int    `json:"maxTextureSize"`
	Prune          bool   `json:"prune"`
	Dedup          bool   `json:"dedup"`
	Instance       bool   `json:"instance"`
	Join           bool   `json:"join"`
}

// DefaultSettings returns the settings used when a request carries no config.
func DefaultSettings() Settings {
	return Settings{
		Draco:          true,
		Meshopt:        false,
		Quantize:       true,
		TextureFormat:  TextureFormatOriginal,
		MaxTextureSize: 4096,
		Prune:          true,
		Dedup:          true,
		// Instancing displaces meshes on models not authored for it.
		Instance: false,
		Join:     true,
	}
}

// JSON returns s encoded as the config text handed to the helper script.
func (s Settings) JSON() string {
	b, err := json.Marshal(s)
	if err != nil {
		// Settings only holds plain scalars.
		panic(err)
	}
	return string(b)
}

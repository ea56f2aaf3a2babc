package config

// Variant describes one flavour of stream server. Both flavours share the
// same design and differ only in naming, recording rate, and port.
type Variant struct {
	Name        string
	Title       string
	PhotoPrefix string
	VideoPrefix string
	RecordFPS   float64
	Port        int
	Colormap    bool // depth: show the colour ramp legend
}

// Variants indexes the supported stream servers by name.
var Variants = map[string]Variant{
	"color": {
		Name:        "color",
		Title:       "Fermia Camera Stream",
		PhotoPrefix: "photo",
		VideoPrefix: "video",
		RecordFPS:   15,
		Port:        5000,
	},
	"depth": {
		Name:        "depth",
		Title:       "Fermia Depth Stream",
		PhotoPrefix: "depth_photo",
		VideoPrefix: "depth_video",
		RecordFPS:   6,
		Port:        5001,
		Colormap:    true,
	},
}

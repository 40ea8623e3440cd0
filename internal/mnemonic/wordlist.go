package mnemonic

// words is the fixed source for recovery phrases. Entries are unique,
// lowercase and contain no whitespace.
var words = [...]string{
	"apple", "arrow", "autumn", "badge", "bamboo", "banner", "basket", "beacon",
	"bicycle", "blanket", "bridge", "bronze", "bubble", "cabin", "cactus", "camera",
	"candle", "canyon", "carbon", "castle", "cedar", "circle", "clover", "cobalt",
	"comet", "copper", "coral", "cotton", "crystal", "dagger", "desert", "dolphin",
	"dragon", "eagle", "echo", "ember", "engine", "falcon", "feather", "fiber",
	"forest", "fossil", "garden", "garnet", "glacier", "harbor", "hazel", "helmet",
	"horizon", "island", "ivory", "jacket", "jasmine", "jungle", "kernel", "kettle",
	"ladder", "lantern", "lemon", "lily", "magnet", "maple", "marble", "meadow",
	"meteor", "mirror", "monsoon", "mosaic", "nectar", "nickel", "noble", "oasis",
	"ocean", "olive", "orbit", "orchid", "oyster", "paddle", "panther", "parrot",
	"pebble", "pepper", "planet", "pocket", "prism", "puzzle", "quartz", "quiver",
	"rabbit", "radar", "raven", "ribbon", "river", "rocket", "saddle", "salmon",
	"saturn", "signal", "silver", "socket", "spiral", "spruce", "summit", "sunset",
	"tablet", "temple", "thunder", "timber", "tunnel", "turtle", "umbrella", "valley",
	"velvet", "violet", "voyage", "walnut", "whistle", "willow", "window", "winter",
	"yarrow", "yellow", "zenith", "zephyr", "zinc", "zodiac", "anchor", "blossom",
}

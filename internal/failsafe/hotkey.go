package failsafe

// Abort keys as Windows virtual-key codes.
const (
	vkPause  = 0x13
	vkEscape = 0x1B
)

// hotkeyReason reports whether a key-down of vk trips the switch, and why.
func hotkeyReason(vk uint32) (string, bool) {
	switch vk {
	case vkEscape:
		return "escape key pressed", true
	case vkPause:
		return "pause key pressed", true
	}
	return "", false
}

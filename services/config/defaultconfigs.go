package config

// -----------------------------------------------------------------------------
// Embedded configuration
//
// Key: board name (the daemon's -board flag)
// Val: TOML for that board
// -----------------------------------------------------------------------------

const cfgRPi = `
[log]
level = "info"

[heartbeat]
interval = "10s"

[[device]]
id = "panel0"
name = "Goodix Capacitive TouchScreen"
chip = "goodix"
bus = "/dev/i2c-1"
addr = 0x5D
irq_pin = "GPIO4"
rotation_file = "/run/touch/rotation"
sink = "uinput"
`

const cfgMXTDev = `
[[device]]
id = "mxt0"
name = "Atmel maXTouch Touchscreen"
chip = "mxt"
bus = "/dev/i2c-0"
addr = 0x4A
irq_pin = "GPIO17"
sink = "uinput"

[device.timings]
settle = "100ms"
`

var embeddedConfigs = map[string][]byte{
	"rpi":    []byte(cfgRPi),
	"mxtdev": []byte(cfgMXTDev),
}

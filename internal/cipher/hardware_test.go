package cipher

import (
	"runtime"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kenneth/xmlenc-gateway/internal/config"
)

func TestHasAESHardwareSupport(t *testing.T) {
	// CPU features can't be mocked here; this just exercises the switch
	// over runtime.GOARCH without panicking.
	_ = HasAESHardwareSupport()
}

func TestIsHardwareAccelerationEnabled(t *testing.T) {
	enabledCfg := config.HardwareConfig{EnableAESNI: true, EnableARMv8AES: true}
	require.Equal(t, HasAESHardwareSupport(), IsHardwareAccelerationEnabled(enabledCfg))

	if HasAESHardwareSupport() && (runtime.GOARCH == "amd64" || runtime.GOARCH == "arm64") {
		disabledCfg := config.HardwareConfig{EnableAESNI: false, EnableARMv8AES: false}
		require.False(t, IsHardwareAccelerationEnabled(disabledCfg))
	}
}

func TestGetHardwareAccelerationInfo(t *testing.T) {
	info := GetHardwareAccelerationInfo(nil)
	for _, field := range []string{"aes_hardware_support", "architecture", "goos", "go_version"} {
		require.Contains(t, info, field)
	}
	_, hasActive := info["hardware_acceleration_active"]
	require.False(t, hasActive, "hardware_acceleration_active should be absent without a config")

	cfg := &config.HardwareConfig{EnableAESNI: true, EnableARMv8AES: true}
	info = GetHardwareAccelerationInfo(cfg)
	require.Contains(t, info, "aes_ni_enabled")
	require.Contains(t, info, "armv8_aes_enabled")
	require.Contains(t, info, "hardware_acceleration_active")
}

package provision

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRecordRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mqtt.dat")
	in := Record{Broker: "192.168.1.10", Port: 1884, Username: "meter", Password: "s3cret"}

	require.NoError(t, Save(path, in))

	out, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, in, out)
}

func TestLoadMissingFileYieldsZeroRecord(t *testing.T) {
	rec, err := Load(filepath.Join(t.TempDir(), "nope.dat"))
	require.NoError(t, err)
	require.Equal(t, Record{}, rec)
}

func TestLoadPadsShortRecord(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mqtt.dat")
	require.NoError(t, os.WriteFile(path, []byte("broker.lan\n"), 0o600))

	rec, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, Record{Broker: "broker.lan"}, rec)
}

func TestLoadIgnoresTrailingLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mqtt.dat")
	require.NoError(t, os.WriteFile(path, []byte("broker.lan;1883;u;p\nleftover junk\n"), 0o600))

	rec, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, Record{Broker: "broker.lan", Port: 1883, Username: "u", Password: "p"}, rec)
}

func TestLoadRejectsBadPort(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mqtt.dat")
	require.NoError(t, os.WriteFile(path, []byte("broker.lan;not-a-port;;\n"), 0o600))

	_, err := Load(path)
	require.Error(t, err)
}

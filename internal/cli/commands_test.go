package cli

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestInitDB_CreatesStore(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "relay.db")

	out, err := execute(t, "init-db", "--db", dbPath)
	require.NoError(t, err)
	assert.Contains(t, out, "event store ready")

	_, statErr := os.Stat(dbPath)
	require.NoError(t, statErr)
}

func TestInitDB_Idempotent(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "relay.db")

	_, err := execute(t, "init-db", "--db", dbPath)
	require.NoError(t, err)
	_, err = execute(t, "init-db", "--db", dbPath)
	require.NoError(t, err)
}

func TestInitDB_RequiresDBFlag(t *testing.T) {
	_, err := execute(t, "init-db")
	require.Error(t, err)
}

func TestPrune_RunsAgainstEmptyStore(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "relay.db")

	_, err := execute(t, "init-db", "--db", dbPath)
	require.NoError(t, err)

	out, err := execute(t, "prune", "--db", dbPath, "--force")
	require.NoError(t, err)
	assert.Contains(t, out, "retention sweep complete")
}

func TestKeygen_Text(t *testing.T) {
	out, err := execute(t, "keygen")
	require.NoError(t, err)
	assert.Contains(t, out, "secret key: ")
	assert.Contains(t, out, "public key: ")
}

func TestKeygen_JSON(t *testing.T) {
	out, err := execute(t, "keygen", "--format", "json")
	require.NoError(t, err)

	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)

	data, err := json.Marshal(resp.Data)
	require.NoError(t, err)
	var pair KeyPair
	require.NoError(t, json.Unmarshal(data, &pair))

	sk, err := hex.DecodeString(pair.SecretKey)
	require.NoError(t, err)
	assert.Len(t, sk, 32)
	pk, err := hex.DecodeString(pair.PublicKey)
	require.NoError(t, err)
	assert.Len(t, pk, 32)
}

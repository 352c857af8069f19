package p2p

import (
	"bytes"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/libp2p/go-libp2p/core/crypto"
	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/natefinch/atomic"

	"github.com/spacemeshos/go-nodeprops/common/types"
)

const keyFilename = "p2p.key"

type identityInfo struct {
	Key string
	ID  peer.ID
}

func identityInfoFromDir(dir string) (*identityInfo, error) {
	path := filepath.Join(dir, keyFilename)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file %s: %w", path, err)
	}
	var info identityInfo
	if err := json.Unmarshal(data, &info); err != nil {
		return nil, fmt.Errorf("unmarshal file content from %s into %+v: %w", path, info, err)
	}
	return &info, nil
}

// PrettyIdentityInfoFromDir returns a printable representation of the identity stored in dir.
func PrettyIdentityInfoFromDir(dir string) (string, error) {
	info, err := identityInfoFromDir(dir)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("{\"ID\":%q}", info.ID.String()), nil
}

// NodeID converts a libp2p peer id into the id used for node properties.
func NodeID(pid peer.ID) types.NodeID {
	return types.NodeID(pid.String())
}

// NodeIDs converts a list of peer ids.
func NodeIDs(pids []peer.ID) []types.NodeID {
	if len(pids) == 0 {
		return nil
	}
	rst := make([]types.NodeID, 0, len(pids))
	for _, pid := range pids {
		rst = append(rst, NodeID(pid))
	}
	return rst
}

// EnsureIdentity generates an identity key file in the given directory.
// If the file already exists, the key is loaded from it.
func EnsureIdentity(dir string) (crypto.PrivKey, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("ensure that directory %s exist: %w", dir, err)
	}
	info, err := identityInfoFromDir(dir)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		key, _, err := crypto.GenerateEd25519Key(rand.Reader)
		if err != nil {
			return nil, fmt.Errorf("generate ed25519 key: %w", err)
		}
		id, err := peer.IDFromPrivateKey(key)
		if err != nil {
			return nil, fmt.Errorf("get peer id from private key: %w", err)
		}
		raw, err := crypto.MarshalPrivateKey(key)
		if err != nil {
			return nil, fmt.Errorf("marshal private key: %w", err)
		}
		data, err := json.Marshal(identityInfo{Key: hex.EncodeToString(raw), ID: id})
		if err != nil {
			return nil, fmt.Errorf("marshal identity info: %w", err)
		}
		path := filepath.Join(dir, keyFilename)
		if err := atomic.WriteFile(path, bytes.NewReader(data)); err != nil {
			return nil, fmt.Errorf("write identity to %s: %w", path, err)
		}
		return key, nil
	case err != nil:
		return nil, fmt.Errorf("read key from disk: %w", err)
	}
	raw, err := hex.DecodeString(info.Key)
	if err != nil {
		return nil, fmt.Errorf("decode key: %w", err)
	}
	key, err := crypto.UnmarshalPrivateKey(raw)
	if err != nil {
		return nil, fmt.Errorf("unmarshal private key: %w", err)
	}
	return key, nil
}
